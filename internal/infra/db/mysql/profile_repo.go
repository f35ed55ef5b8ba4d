package mysql

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/bryanwahyu/career-insight/internal/domain/insights"
    "github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

type ProfileRepository struct {
    db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
    return &ProfileRepository{db: db}
}

// Get returns nil, nil when the user has no profile
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*profiles.Profile, error) {
    p, err := findProfile(ctx, r.db, userID)
    if err != nil {
        return nil, insights.StorageErr("get user profile", err)
    }
    return p, nil
}

// Create inserts an empty profile; calling it again for the same user is a no-op
func (r *ProfileRepository) Create(ctx context.Context, userID string) (*profiles.Profile, error) {
    const q = `
INSERT INTO user_profiles (id, category, experience_years, bio, skills, updated_at)
VALUES (?, NULL, 0, '', '[]', ?)
ON DUPLICATE KEY UPDATE id=id;
`
    if _, err := r.db.ExecContext(ctx, q, userID, time.Now().UTC()); err != nil {
        return nil, insights.StorageErr("create user profile", err)
    }
    return r.Get(ctx, userID)
}

func findProfile(ctx context.Context, q querier, userID string) (*profiles.Profile, error) {
    const query = `SELECT id, category, experience_years, bio, skills, updated_at FROM user_profiles WHERE id = ?`
    var (
        p        profiles.Profile
        category sql.NullString
        skills   []byte
    )
    err := q.QueryRowContext(ctx, query, userID).Scan(&p.ID, &category, &p.ExperienceYears, &p.Bio, &skills, &p.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    p.Category = category.String
    if err := decodeList(skills, &p.Skills); err != nil {
        return nil, err
    }
    p.UpdatedAt = p.UpdatedAt.UTC()
    return &p, nil
}
