package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// DDL dijalankan satu per satu, driver tidak memakai multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS insight_reports (
  category           VARCHAR(191) NOT NULL PRIMARY KEY,
  market_outlook     VARCHAR(16)  NOT NULL,
  growth_rate        DOUBLE       NOT NULL,
  demand_level       VARCHAR(16)  NOT NULL,
  top_skills         JSON         NOT NULL,
  key_trends         JSON         NOT NULL,
  recommended_skills JSON         NOT NULL,
  salary_ranges      JSON         NOT NULL,
  last_updated       DATETIME(6)  NOT NULL,
  next_refresh_due   DATETIME(6)  NOT NULL,
  INDEX idx_insight_reports_next_refresh_due (next_refresh_due)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
  id               VARCHAR(191) NOT NULL PRIMARY KEY,
  category         VARCHAR(191) NULL,
  experience_years INT          NOT NULL DEFAULT 0,
  bio              TEXT         NOT NULL,
  skills           JSON         NOT NULL,
  updated_at       DATETIME(6)  NOT NULL,
  CONSTRAINT fk_user_profiles_category FOREIGN KEY (category) REFERENCES insight_reports (category)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate mysql step %d: %w", i+1, err)
		}
	}
	return nil
}
