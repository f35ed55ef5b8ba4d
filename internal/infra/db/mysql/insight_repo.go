package mysql

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/bryanwahyu/career-insight/internal/domain/insights"
    "github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

const reportColumns = `category, market_outlook, growth_rate, demand_level, top_skills, key_trends, recommended_skills, salary_ranges, last_updated, next_refresh_due`

type InsightRepository struct {
    db *sql.DB
}

func NewInsightRepository(db *sql.DB) *InsightRepository {
    return &InsightRepository{db: db}
}

// Find returns nil, nil when the category has no report yet
func (r *InsightRepository) Find(ctx context.Context, category string) (*insights.Report, error) {
    rep, err := findReport(ctx, r.db, category, false)
    if err != nil {
        return nil, insights.StorageErr("find insight report", err)
    }
    return rep, nil
}

func (r *InsightRepository) RunInTx(ctx context.Context, fn func(tx insights.Tx) error) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return insights.StorageErr("begin tx", err)
    }
    if err := fn(&insightTx{q: tx}); err != nil {
        _ = tx.Rollback()
        return err
    }
    if err := tx.Commit(); err != nil {
        return insights.StorageErr("commit tx", err)
    }
    return nil
}

// ListStale returns categories whose refresh is due, oldest first
func (r *InsightRepository) ListStale(ctx context.Context, now time.Time, limit int) ([]string, error) {
    if limit <= 0 {
        limit = 100
    }
    const q = `
SELECT category FROM insight_reports
WHERE next_refresh_due <= ?
ORDER BY next_refresh_due ASC
LIMIT ?;
`
    rows, err := r.db.QueryContext(ctx, q, now, limit)
    if err != nil {
        return nil, insights.StorageErr("list stale reports", err)
    }
    defer rows.Close()

    var out []string
    for rows.Next() {
        var c string
        if err := rows.Scan(&c); err != nil {
            return nil, insights.StorageErr("scan stale report", err)
        }
        out = append(out, c)
    }
    if err := rows.Err(); err != nil {
        return nil, insights.StorageErr("list stale reports", err)
    }
    return out, nil
}

type insightTx struct {
    q querier
}

func (t *insightTx) Find(ctx context.Context, category string) (*insights.Report, error) {
    rep, err := findReport(ctx, t.q, category, false)
    if err != nil {
        return nil, insights.StorageErr("find insight report", err)
    }
    return rep, nil
}

// UpsertIfAbsent inserts the report; on a duplicate key the row that won is read
// back under a shared lock and returned unchanged.
func (t *insightTx) UpsertIfAbsent(ctx context.Context, category string, p insights.Payload, now time.Time, refreshAfter time.Duration) (*insights.Report, error) {
    rep := insights.NewReport(category, p, now, refreshAfter)
    args, err := reportArgs(rep)
    if err != nil {
        return nil, insights.StorageErr("encode insight report", err)
    }

    q := `INSERT INTO insight_reports (` + reportColumns + `) VALUES (?,?,?,?,?,?,?,?,?,?);`
    _, err = t.q.ExecContext(ctx, q, args...)
    if err == nil {
        return rep, nil
    }
    if !isDuplicateKey(err) {
        return nil, insights.StorageErr("insert insight report", err)
    }

    existing, err := findReport(ctx, t.q, category, true)
    if err != nil {
        return nil, insights.StorageErr("read existing insight report", err)
    }
    if existing == nil {
        return nil, insights.StorageErr("read existing insight report", fmt.Errorf("duplicate key but no row for %q", category))
    }
    return existing, nil
}

// Refresh is a compare-and-swap on last_updated
func (t *insightTx) Refresh(ctx context.Context, category string, p insights.Payload, prev, now time.Time, refreshAfter time.Duration) (*insights.Report, error) {
    rep := insights.NewReport(category, p, now, refreshAfter)
    args, err := reportArgs(rep)
    if err != nil {
        return nil, insights.StorageErr("encode insight report", err)
    }

    const q = `
UPDATE insight_reports SET
  market_outlook=?, growth_rate=?, demand_level=?, top_skills=?, key_trends=?,
  recommended_skills=?, salary_ranges=?, last_updated=?, next_refresh_due=?
WHERE category=? AND last_updated=?;
`
    // args[0] is the category, moved to the WHERE clause
    updateArgs := append(append([]any{}, args[1:]...), category, prev)
    res, err := t.q.ExecContext(ctx, q, updateArgs...)
    if err != nil {
        return nil, insights.StorageErr("refresh insight report", err)
    }
    if n, err := res.RowsAffected(); err == nil && n == 1 {
        return rep, nil
    }

    existing, err := findReport(ctx, t.q, category, true)
    if err != nil {
        return nil, insights.StorageErr("read refreshed insight report", err)
    }
    if existing == nil {
        return t.UpsertIfAbsent(ctx, category, p, now, refreshAfter)
    }
    return existing, nil
}

func (t *insightTx) AttachUserCategory(ctx context.Context, userID string, f profiles.Fields, now time.Time) (*profiles.Profile, error) {
    skills, err := jsonList(f.Skills)
    if err != nil {
        return nil, insights.StorageErr("encode skills", err)
    }
    var category sql.NullString
    if f.Category != "" {
        category = sql.NullString{String: f.Category, Valid: true}
    }

    const q = `
UPDATE user_profiles SET
  category=?, experience_years=?, bio=?, skills=?, updated_at=?
WHERE id=?;
`
    if _, err := t.q.ExecContext(ctx, q, category, f.ExperienceYears, trimmedOrEmpty(f.Bio), skills, now, userID); err != nil {
        return nil, insights.StorageErr("update user profile", err)
    }

    p, err := findProfile(ctx, t.q, userID)
    if err != nil {
        return nil, insights.StorageErr("read user profile", err)
    }
    if p == nil {
        return nil, insights.ErrProfileNotFound
    }
    return p, nil
}

func findReport(ctx context.Context, q querier, category string, lock bool) (*insights.Report, error) {
    query := `SELECT ` + reportColumns + ` FROM insight_reports WHERE category = ?`
    if lock {
        query += ` LOCK IN SHARE MODE`
    }
    rep, err := scanReport(q.QueryRowContext(ctx, query, category))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return rep, err
}

func scanReport(s scanner) (*insights.Report, error) {
    var (
        rep                          insights.Report
        outlook, demand              string
        top, trends, recommended, sr []byte
    )
    if err := s.Scan(&rep.Category, &outlook, &rep.GrowthRate, &demand, &top, &trends, &recommended, &sr, &rep.LastUpdated, &rep.NextRefreshDue); err != nil {
        return nil, err
    }
    rep.MarketOutlook = insights.MarketOutlook(outlook)
    rep.DemandLevel = insights.DemandLevel(demand)
    for _, c := range []struct {
        raw []byte
        dst *[]string
    }{{top, &rep.TopSkills}, {trends, &rep.KeyTrends}, {recommended, &rep.RecommendedSkills}} {
        if err := decodeList(c.raw, c.dst); err != nil {
            return nil, fmt.Errorf("decode list column: %w", err)
        }
    }
    if err := decodeList(sr, &rep.SalaryRanges); err != nil {
        return nil, fmt.Errorf("decode salary_ranges: %w", err)
    }
    rep.LastUpdated = rep.LastUpdated.UTC()
    rep.NextRefreshDue = rep.NextRefreshDue.UTC()
    return &rep, nil
}

func reportArgs(r *insights.Report) ([]any, error) {
    top, err := jsonList(r.TopSkills)
    if err != nil {
        return nil, err
    }
    trends, err := jsonList(r.KeyTrends)
    if err != nil {
        return nil, err
    }
    recommended, err := jsonList(r.RecommendedSkills)
    if err != nil {
        return nil, err
    }
    sr, err := jsonList(r.SalaryRanges)
    if err != nil {
        return nil, err
    }
    return []any{
        r.Category, string(r.MarketOutlook), r.GrowthRate, string(r.DemandLevel),
        top, trends, recommended, sr, r.LastUpdated, r.NextRefreshDue,
    }, nil
}
