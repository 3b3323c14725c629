package postgres

// Schema is idempotent so it can run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS demand_history (
	material_id BIGINT           NOT NULL,
	date        DATE             NOT NULL,
	demand      DOUBLE PRECISION NOT NULL CHECK (demand >= 0),
	PRIMARY KEY (material_id, date)
);

CREATE TABLE IF NOT EXISTS lifetime_runs (
	id            BIGSERIAL PRIMARY KEY,
	ref_date      DATE        NOT NULL,
	window_mode   TEXT        NOT NULL,
	status        TEXT        NOT NULL,
	materials     INTEGER     NOT NULL DEFAULT 0,
	estimated     INTEGER     NOT NULL DEFAULT 0,
	skipped       INTEGER     NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ,
	error_message TEXT        NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_lifetime_runs_ref_date ON lifetime_runs (ref_date);

CREATE TABLE IF NOT EXISTS lifetime_estimates (
	run_id           BIGINT  NOT NULL REFERENCES lifetime_runs (id) ON DELETE CASCADE,
	material_id      BIGINT  NOT NULL,
	outcome          TEXT    NOT NULL,
	days_of_coverage INTEGER NOT NULL DEFAULT 0,
	skip_reason      TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, material_id)
);
`
