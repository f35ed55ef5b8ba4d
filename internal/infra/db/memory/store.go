// Package memory is an in-process implementation of the insight and profile
// repositories. Transactions are serialized by a single mutex and staged
// writes become visible only on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/career-insight/internal/domain/insights"
	"github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

type Store struct {
	mu       sync.RWMutex
	reports  map[string]*insights.Report
	profiles map[string]*profiles.Profile
}

func New() *Store {
	return &Store{
		reports:  make(map[string]*insights.Report),
		profiles: make(map[string]*profiles.Profile),
	}
}

func (s *Store) Find(ctx context.Context, category string) (*insights.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports[category].Clone(), nil
}

func (s *Store) ListStale(ctx context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*insights.Report
	for _, r := range s.reports {
		if !r.Fresh(now) {
			stale = append(stale, r)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].NextRefreshDue.Before(stale[j].NextRefreshDue) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	out := make([]string, 0, len(stale))
	for _, r := range stale {
		out = append(out, r.Category)
	}
	return out, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx insights.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		s:        s,
		reports:  make(map[string]*insights.Report),
		profiles: make(map[string]*profiles.Profile),
	}
	if err := fn(tx); err != nil {
		return err
	}
	// a deadline that passed while fn ran aborts the commit, same as a SQL driver would
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range tx.reports {
		s.reports[k] = v
	}
	for k, v := range tx.profiles {
		s.profiles[k] = v
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID string) (*profiles.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProfile(s.profiles[userID]), nil
}

// Create is idempotent; an existing profile is returned unchanged.
func (s *Store) Create(ctx context.Context, userID string) (*profiles.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return cloneProfile(p), nil
	}
	p := &profiles.Profile{ID: userID, Skills: []string{}, UpdatedAt: time.Now().UTC()}
	s.profiles[userID] = p
	return cloneProfile(p), nil
}

type memTx struct {
	s        *Store
	reports  map[string]*insights.Report
	profiles map[string]*profiles.Profile
}

func (t *memTx) report(category string) *insights.Report {
	if r, ok := t.reports[category]; ok {
		return r
	}
	return t.s.reports[category]
}

func (t *memTx) Find(ctx context.Context, category string) (*insights.Report, error) {
	return t.report(category).Clone(), nil
}

func (t *memTx) UpsertIfAbsent(ctx context.Context, category string, p insights.Payload, now time.Time, refreshAfter time.Duration) (*insights.Report, error) {
	if existing := t.report(category); existing != nil {
		return existing.Clone(), nil
	}
	r := insights.NewReport(category, p, now, refreshAfter)
	t.reports[category] = r
	return r.Clone(), nil
}

func (t *memTx) Refresh(ctx context.Context, category string, p insights.Payload, prev, now time.Time, refreshAfter time.Duration) (*insights.Report, error) {
	existing := t.report(category)
	if existing == nil {
		return t.UpsertIfAbsent(ctx, category, p, now, refreshAfter)
	}
	if !existing.LastUpdated.Equal(prev) {
		return existing.Clone(), nil
	}
	r := insights.NewReport(category, p, now, refreshAfter)
	t.reports[category] = r
	return r.Clone(), nil
}

func (t *memTx) AttachUserCategory(ctx context.Context, userID string, f profiles.Fields, now time.Time) (*profiles.Profile, error) {
	cur, ok := t.profiles[userID]
	if !ok {
		cur, ok = t.s.profiles[userID]
	}
	if !ok {
		return nil, insights.ErrProfileNotFound
	}
	if f.Category != "" && t.report(f.Category) == nil {
		return nil, insights.StorageErr("attach user category", fmt.Errorf("category %q has no insight report", f.Category))
	}
	p := &profiles.Profile{
		ID:              cur.ID,
		Category:        f.Category,
		ExperienceYears: f.ExperienceYears,
		Bio:             f.Bio,
		Skills:          append([]string{}, f.Skills...),
		UpdatedAt:       now,
	}
	t.profiles[userID] = p
	return cloneProfile(p), nil
}

func cloneProfile(p *profiles.Profile) *profiles.Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Skills = append([]string{}, p.Skills...)
	return &c
}
