package postgres

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/lib/pq"

    "github.com/bryanwahyu/career-insight/internal/domain/insights"
    "github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

const reportColumns = `category, market_outlook, growth_rate, demand_level, top_skills, key_trends, recommended_skills, salary_ranges, last_updated, next_refresh_due`

type InsightRepository struct { db *sql.DB }

func NewInsightRepository(db *sql.DB) *InsightRepository { return &InsightRepository{db: db} }

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

func (r *InsightRepository) ListStale(ctx context.Context, now time.Time, limit int) ([]string, error) {
    if limit <= 0 { limit = 100 }
    const q = `
SELECT category FROM insight_reports
WHERE next_refresh_due <= $1
ORDER BY next_refresh_due ASC
LIMIT $2;`
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

type insightTx struct { q querier }

func (t *insightTx) Find(ctx context.Context, category string) (*insights.Report, error) {
    rep, err := findReport(ctx, t.q, category, false)
    if err != nil {
        return nil, insights.StorageErr("find insight report", err)
    }
    return rep, nil
}

// UpsertIfAbsent: ON CONFLICT DO NOTHING returns no row when someone else inserted first,
// in that case the committed row is read under FOR SHARE.
func (t *insightTx) UpsertIfAbsent(ctx context.Context, category string, p insights.Payload, now time.Time, refreshAfter time.Duration) (*insights.Report, error) {
    rep := insights.NewReport(category, p, now, refreshAfter)
    args, err := reportArgs(rep)
    if err != nil {
        return nil, insights.StorageErr("encode insight report", err)
    }

    q := `INSERT INTO insight_reports (` + reportColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (category) DO NOTHING
RETURNING ` + reportColumns + `;`
    inserted, err := scanReport(t.q.QueryRowContext(ctx, q, args...))
    if err == nil {
        return inserted, nil
    }
    if !errors.Is(err, sql.ErrNoRows) {
        return nil, insights.StorageErr("insert insight report", err)
    }

    existing, err := findReport(ctx, t.q, category, true)
    if err != nil {
        return nil, insights.StorageErr("read existing insight report", err)
    }
    if existing == nil {
        return nil, insights.StorageErr("read existing insight report", fmt.Errorf("conflict but no row for %q", category))
    }
    return existing, nil
}

// Refresh compare-and-swap on last_updated
func (t *insightTx) Refresh(ctx context.Context, category string, p insights.Payload, prev, now time.Time, refreshAfter time.Duration) (*insights.Report, error) {
    rep := insights.NewReport(category, p, now, refreshAfter)
    args, err := reportArgs(rep)
    if err != nil {
        return nil, insights.StorageErr("encode insight report", err)
    }

    q := `
UPDATE insight_reports SET
  market_outlook=$2, growth_rate=$3, demand_level=$4, top_skills=$5, key_trends=$6,
  recommended_skills=$7, salary_ranges=$8, last_updated=$9, next_refresh_due=$10
WHERE category=$1 AND last_updated=$11
RETURNING ` + reportColumns + `;`
    swapped, err := scanReport(t.q.QueryRowContext(ctx, q, append(args, prev)...))
    if err == nil {
        return swapped, nil
    }
    if !errors.Is(err, sql.ErrNoRows) {
        return nil, insights.StorageErr("refresh insight report", err)
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
    var category sql.NullString
    if f.Category != "" {
        category = sql.NullString{String: f.Category, Valid: true}
    }
    const q = `
UPDATE user_profiles SET
  category=$2, experience_years=$3, bio=$4, skills=$5, updated_at=$6
WHERE id=$1
RETURNING id, category, experience_years, bio, skills, updated_at;`
    p, err := scanProfile(t.q.QueryRowContext(ctx, q, userID, category, f.ExperienceYears, strings.TrimSpace(f.Bio), pq.Array(nonNil(f.Skills)), now))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, insights.ErrProfileNotFound
    }
    if err != nil {
        return nil, insights.StorageErr("update user profile", err)
    }
    return p, nil
}

func findReport(ctx context.Context, q querier, category string, lock bool) (*insights.Report, error) {
    query := `SELECT ` + reportColumns + ` FROM insight_reports WHERE category = $1`
    if lock {
        query += ` FOR SHARE`
    }
    rep, err := scanReport(q.QueryRowContext(ctx, query, category))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return rep, err
}

func scanReport(s scanner) (*insights.Report, error) {
    var (
        rep             insights.Report
        outlook, demand string
        sr              []byte
    )
    err := s.Scan(&rep.Category, &outlook, &rep.GrowthRate, &demand,
        pq.Array(&rep.TopSkills), pq.Array(&rep.KeyTrends), pq.Array(&rep.RecommendedSkills),
        &sr, &rep.LastUpdated, &rep.NextRefreshDue)
    if err != nil {
        return nil, err
    }
    rep.MarketOutlook = insights.MarketOutlook(outlook)
    rep.DemandLevel = insights.DemandLevel(demand)
    rep.SalaryRanges = []insights.SalaryRange{}
    if len(sr) > 0 {
        if err := json.Unmarshal(sr, &rep.SalaryRanges); err != nil {
            return nil, fmt.Errorf("decode salary_ranges: %w", err)
        }
    }
    rep.TopSkills = nonNil(rep.TopSkills)
    rep.KeyTrends = nonNil(rep.KeyTrends)
    rep.RecommendedSkills = nonNil(rep.RecommendedSkills)
    rep.LastUpdated = rep.LastUpdated.UTC()
    rep.NextRefreshDue = rep.NextRefreshDue.UTC()
    return &rep, nil
}

func reportArgs(r *insights.Report) ([]any, error) {
    ranges := r.SalaryRanges
    if ranges == nil {
        ranges = []insights.SalaryRange{}
    }
    sr, err := json.Marshal(ranges)
    if err != nil {
        return nil, err
    }
    return []any{
        r.Category, string(r.MarketOutlook), r.GrowthRate, string(r.DemandLevel),
        pq.Array(nonNil(r.TopSkills)), pq.Array(nonNil(r.KeyTrends)), pq.Array(nonNil(r.RecommendedSkills)),
        sr, r.LastUpdated, r.NextRefreshDue,
    }, nil
}
