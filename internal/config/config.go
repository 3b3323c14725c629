// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Drive     DriveConfig
	Paths     PathsConfig
	Estimator EstimatorConfig
	LogLevel  string
	LogFormat string // "console" or "json"
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the connection string, preferring DATABASE_URL when set.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

type StorageConfig struct {
	Enabled       bool
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	ExportsPrefix string
	ReportsPrefix string
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

// PathsConfig holds every file location the collaborators need.
type PathsConfig struct {
	SAPDir    string // vendor exports: stock snapshots and VMD files
	DemandDir string // <material>_demanda.csv files
	ReportDir string // Comprobacion_stock_*.xlsx output
}

type EstimatorConfig struct {
	WindowMode        string // "trailing" or "legacy"
	WindowDays        int
	Sentinel          int
	MaxSimulationDays int
	Workers           int
	DemandSource      string // "files" or "postgres"
}

// Load reads .env and the environment into a new Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("DB_ENABLED"),
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:       v.GetBool("STORAGE_ENABLED"),
			Endpoint:      v.GetString("STORAGE_ENDPOINT"),
			AccessKey:     v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     v.GetString("STORAGE_SECRET_KEY"),
			Bucket:        v.GetString("STORAGE_BUCKET"),
			Region:        v.GetString("STORAGE_REGION"),
			UseSSL:        v.GetBool("STORAGE_USE_SSL"),
			ExportsPrefix: v.GetString("STORAGE_EXPORTS_PREFIX"),
			ReportsPrefix: v.GetString("STORAGE_REPORTS_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("SAP_DRIVE_FOLDER_ID"),
		},
		Paths: PathsConfig{
			SAPDir:    v.GetString("SAP_DIR"),
			DemandDir: v.GetString("DEMAND_DIR"),
			ReportDir: v.GetString("REPORT_DIR"),
		},
		Estimator: EstimatorConfig{
			WindowMode:        strings.ToLower(strings.TrimSpace(v.GetString("ESTIMATOR_WINDOW_MODE"))),
			WindowDays:        v.GetInt("ESTIMATOR_WINDOW_DAYS"),
			Sentinel:          v.GetInt("ESTIMATOR_SENTINEL"),
			MaxSimulationDays: v.GetInt("ESTIMATOR_MAX_SIMULATION_DAYS"),
			Workers:           v.GetInt("ESTIMATOR_WORKERS"),
			DemandSource:      strings.ToLower(strings.TrimSpace(v.GetString("DEMAND_SOURCE"))),
		},
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stocklife")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 300)
	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_EXPORTS_PREFIX", "sap/")
	v.SetDefault("STORAGE_REPORTS_PREFIX", "reports/")
	v.SetDefault("SAP_DIR", "./data/sap")
	v.SetDefault("DEMAND_DIR", "./data/pipeline")
	v.SetDefault("REPORT_DIR", filepath.Join("data", "pipeline", "Stock"))
	v.SetDefault("ESTIMATOR_WINDOW_MODE", "trailing")
	v.SetDefault("ESTIMATOR_WINDOW_DAYS", 7)
	v.SetDefault("ESTIMATOR_SENTINEL", 1000)
	v.SetDefault("ESTIMATOR_MAX_SIMULATION_DAYS", 100000)
	v.SetDefault("ESTIMATOR_WORKERS", 4)
	v.SetDefault("DEMAND_SOURCE", "files")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Validate rejects settings the collaborators cannot work with.
func (c *Config) Validate() error {
	switch c.Estimator.WindowMode {
	case "trailing", "legacy":
	default:
		return fmt.Errorf("invalid ESTIMATOR_WINDOW_MODE %q (want trailing or legacy)", c.Estimator.WindowMode)
	}
	switch c.Estimator.DemandSource {
	case "files", "postgres":
	default:
		return fmt.Errorf("invalid DEMAND_SOURCE %q (want files or postgres)", c.Estimator.DemandSource)
	}
	if c.Estimator.DemandSource == "postgres" && !c.Database.Enabled {
		return fmt.Errorf("DEMAND_SOURCE=postgres requires DB_ENABLED=true")
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (want console or json)", c.LogFormat)
	}
	if c.Estimator.WindowDays < 1 {
		return fmt.Errorf("ESTIMATOR_WINDOW_DAYS must be positive, got %d", c.Estimator.WindowDays)
	}
	if c.Estimator.Workers < 1 {
		c.Estimator.Workers = 1
	}
	return nil
}

// EnsureDirs creates the output directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.SAPDir, c.Paths.ReportDir} {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return nil
}
