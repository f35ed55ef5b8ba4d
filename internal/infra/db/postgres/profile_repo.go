package postgres

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/lib/pq"

    "github.com/bryanwahyu/career-insight/internal/domain/insights"
    "github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

type ProfileRepository struct { db *sql.DB }

func NewProfileRepository(db *sql.DB) *ProfileRepository { return &ProfileRepository{db: db} }

// Get returns nil, nil when the user has no profile
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*profiles.Profile, error) {
    const q = `SELECT id, category, experience_years, bio, skills, updated_at FROM user_profiles WHERE id = $1`
    p, err := scanProfile(r.db.QueryRowContext(ctx, q, userID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, insights.StorageErr("get user profile", err)
    }
    return p, nil
}

func (r *ProfileRepository) Create(ctx context.Context, userID string) (*profiles.Profile, error) {
    const q = `
INSERT INTO user_profiles (id, updated_at) VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING;`
    if _, err := r.db.ExecContext(ctx, q, userID, time.Now().UTC()); err != nil {
        return nil, insights.StorageErr("create user profile", err)
    }
    return r.Get(ctx, userID)
}

func scanProfile(s scanner) (*profiles.Profile, error) {
    var (
        p        profiles.Profile
        category sql.NullString
    )
    if err := s.Scan(&p.ID, &category, &p.ExperienceYears, &p.Bio, pq.Array(&p.Skills), &p.UpdatedAt); err != nil {
        return nil, err
    }
    p.Category = category.String
    p.Skills = nonNil(p.Skills)
    p.UpdatedAt = p.UpdatedAt.UTC()
    return &p, nil
}
