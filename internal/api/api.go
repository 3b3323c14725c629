package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocklife/internal/api/handlers"
	"github.com/andresuchdata/stocklife/internal/api/middleware"
	"github.com/andresuchdata/stocklife/internal/drive"
)

type Services struct {
	Lifetime handlers.LifetimeService
	Runs     handlers.RunHistory // optional, needs run tracking
	Drive    *drive.Handler      // optional, mounted under /api/drive
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger("/health"))
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.Lifetime != nil {
			lifetimeHandler := handlers.NewLifetimeHandler(services.Lifetime)
			lifetimeGroup := apiGroup.Group("/stock_lifetime")
			{
				lifetimeGroup.GET("", lifetimeHandler.GetLifetime)
				lifetimeGroup.GET("/report", lifetimeHandler.GetReport)
				lifetimeGroup.POST("/refresh", lifetimeHandler.Refresh)
			}
		}

		if services.Runs != nil {
			runHandler := handlers.NewRunHandler(services.Runs)
			runGroup := apiGroup.Group("/stock_lifetime/runs")
			{
				runGroup.GET("/latest", runHandler.GetLatestRun)
				runGroup.GET("/:id", runHandler.GetRun)
			}
		}

		if services.Drive != nil {
			router.Any("/api/drive/*path", gin.WrapH(services.Drive.Router()))
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
