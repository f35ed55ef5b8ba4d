package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS insight_reports (
  category           TEXT PRIMARY KEY,
  market_outlook     TEXT NOT NULL,
  growth_rate        DOUBLE PRECISION NOT NULL,
  demand_level       TEXT NOT NULL,
  top_skills         TEXT[] NOT NULL DEFAULT '{}',
  key_trends         TEXT[] NOT NULL DEFAULT '{}',
  recommended_skills TEXT[] NOT NULL DEFAULT '{}',
  salary_ranges      JSONB NOT NULL DEFAULT '[]',
  last_updated       TIMESTAMPTZ NOT NULL,
  next_refresh_due   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_insight_reports_next_refresh_due ON insight_reports (next_refresh_due)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
  id               TEXT PRIMARY KEY,
  category         TEXT NULL REFERENCES insight_reports (category),
  experience_years INTEGER NOT NULL DEFAULT 0,
  bio              TEXT NOT NULL DEFAULT '',
  skills           TEXT[] NOT NULL DEFAULT '{}',
  updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres step %d: %w", i+1, err)
		}
	}
	return nil
}
