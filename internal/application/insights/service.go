package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/bryanwahyu/career-insight/internal/application"
	"github.com/bryanwahyu/career-insight/internal/domain/insights"
	"github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

const (
	defaultTxTimeout         = 10 * time.Second
	defaultGenerationTimeout = 60 * time.Second
	maxExperienceYears       = 50
)

// Metrics receives workflow events; nil disables them.
type Metrics interface {
	CacheHit()
	Generated()
	GenerationFailed()
}

// Service implements use-cases untuk insight per category.
// Safe for concurrent use; concurrent generations for one category are collapsed in-process.
type Service struct {
	Repo      insights.Repository
	Profiles  profiles.Repository
	Generator insights.Generator
	Archive   insights.ArchiveStore // optional
	Clock     application.Clock
	Log       logrus.FieldLogger
	Metrics   Metrics

	TxTimeout         time.Duration
	RefreshAfter      time.Duration
	GenerationTimeout time.Duration

	flight singleflight.Group
}

//
// ==== USE CASES ====
//

// EnsureInsightForCategory returns the stored report when it is still fresh, otherwise
// generates one and persists it. Concurrent callers for the same category all receive
// the single committed row.
func (s *Service) EnsureInsightForCategory(ctx context.Context, category string) (*insights.Report, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", insights.ErrInvalidInput)
	}

	p, err := s.prepare(ctx, category)
	if err != nil {
		return nil, err
	}
	if p.gen == nil {
		return p.existing, nil
	}

	var rep *insights.Report
	err = s.inTx(ctx, "ensure insight", func(ctx context.Context, tx insights.Tx) error {
		var err error
		rep, err = s.persist(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.archive(ctx, p, rep)
	return rep, nil
}

// OnboardingResult is returned by UpdateProfileAndEnsureInsight.
type OnboardingResult struct {
	Profile *profiles.Profile `json:"profile"`
	Report  *insights.Report  `json:"insight"`
}

// UpdateProfileAndEnsureInsight writes the onboarding fields and makes sure the category
// has a report. The report upsert and the profile update commit together or not at all.
func (s *Service) UpdateProfileAndEnsureInsight(ctx context.Context, userID string, f profiles.Fields) (*OnboardingResult, error) {
	if _, err := s.requireProfile(ctx, userID); err != nil {
		return nil, err
	}
	f, err := normalizeFields(f)
	if err != nil {
		return nil, err
	}

	p, err := s.prepare(ctx, f.Category)
	if err != nil {
		return nil, err
	}

	var out OnboardingResult
	err = s.inTx(ctx, "update profile", func(ctx context.Context, tx insights.Tx) error {
		rep, err := s.persist(ctx, tx, p)
		if err != nil {
			return err
		}
		prof, err := tx.AttachUserCategory(ctx, strings.TrimSpace(userID), f, p.now)
		if err != nil {
			return err
		}
		out = OnboardingResult{Profile: prof, Report: rep}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.archive(ctx, p, out.Report)
	s.logger().WithFields(logrus.Fields{"user_id": userID, "category": f.Category}).Info("profile onboarded")
	return &out, nil
}

// GetInsightForCurrentUser resolves the caller's category and ensures its report.
func (s *Service) GetInsightForCurrentUser(ctx context.Context, userID string) (*insights.Report, error) {
	prof, err := s.requireProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prof.Onboarded() {
		return nil, insights.ErrNotOnboarded
	}
	return s.EnsureInsightForCategory(ctx, prof.Category)
}

// OnboardingStatus reports whether the caller already picked an industry.
func (s *Service) OnboardingStatus(ctx context.Context, userID string) (bool, error) {
	prof, err := s.requireProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	return prof.Onboarded(), nil
}

// RegisterProfile creates the caller's empty profile; repeated calls return the existing one.
func (s *Service) RegisterProfile(ctx context.Context, userID string) (*profiles.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, insights.ErrUnauthenticated
	}
	return s.Profiles.Create(ctx, userID)
}

//
// ==== helpers ====
//

// plan is what prepare decided: serve existing as-is (gen == nil) or persist gen.
type plan struct {
	category string
	existing *insights.Report
	gen      *insights.Generation
	now      time.Time
}

func (s *Service) prepare(ctx context.Context, category string) (plan, error) {
	now := s.now()
	existing, err := s.Repo.Find(ctx, category)
	if err != nil {
		return plan{}, err
	}
	if existing != nil && existing.Fresh(now) {
		s.metrics().CacheHit()
		return plan{category: category, existing: existing, now: now}, nil
	}

	gen, err := s.generate(ctx, category)
	if err != nil {
		return plan{}, err
	}
	// restamp, generation can take a while
	return plan{category: category, existing: existing, gen: &gen, now: s.now()}, nil
}

func (s *Service) persist(ctx context.Context, tx insights.Tx, p plan) (*insights.Report, error) {
	if p.gen == nil {
		return p.existing, nil
	}
	if p.existing == nil {
		return tx.UpsertIfAbsent(ctx, p.category, p.gen.Payload, p.now, s.refreshAfter())
	}
	return tx.Refresh(ctx, p.category, p.gen.Payload, p.existing.LastUpdated, p.now, s.refreshAfter())
}

func (s *Service) generate(ctx context.Context, category string) (insights.Generation, error) {
	ch := s.flight.DoChan(category, func() (any, error) {
		// shared by every waiter, so one caller going away must not cancel it
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.generationTimeout())
		defer cancel()

		start := time.Now()
		gen, err := s.Generator.Produce(gctx, category)
		if err != nil {
			s.metrics().GenerationFailed()
			s.logger().WithError(err).WithField("category", category).Warn("insight generation failed")
			return nil, err
		}
		s.metrics().Generated()
		s.logger().WithFields(logrus.Fields{
			"category":    category,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("insight generated")
		return gen, nil
	})

	select {
	case <-ctx.Done():
		return insights.Generation{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return insights.Generation{}, fmt.Errorf("%w: %w", insights.ErrInsightUnavailable, res.Err)
		}
		return res.Val.(insights.Generation), nil
	}
}

func (s *Service) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx insights.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout())
	defer cancel()

	err := s.Repo.RunInTx(txCtx, func(tx insights.Tx) error { return fn(txCtx, tx) })
	if err == nil {
		return nil
	}
	if errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		s.logger().WithError(err).WithField("op", op).Warn("transaction rolled back after timeout")
		return fmt.Errorf("%w: %s did not commit within %s", insights.ErrStorageTimeout, op, s.txTimeout())
	}
	return err
}

// archive stores the raw model output when this call's row is the one that got committed.
func (s *Service) archive(ctx context.Context, p plan, rep *insights.Report) {
	if s.Archive == nil || p.gen == nil || rep == nil || !rep.LastUpdated.Equal(p.now) {
		return
	}
	key, err := s.Archive.PutGeneration(ctx, rep, p.gen.Raw)
	if err != nil {
		s.logger().WithError(err).WithField("category", rep.Category).Warn("archive generation failed")
		return
	}
	s.logger().WithFields(logrus.Fields{"category": rep.Category, "key": key}).Debug("generation archived")
}

func (s *Service) requireProfile(ctx context.Context, userID string) (*profiles.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, insights.ErrUnauthenticated
	}
	prof, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return nil, insights.ErrProfileNotFound
	}
	return prof, nil
}

func normalizeFields(f profiles.Fields) (profiles.Fields, error) {
	f.Category = strings.TrimSpace(f.Category)
	if f.Category == "" {
		return f, fmt.Errorf("%w: industry is required", insights.ErrInvalidInput)
	}
	if f.ExperienceYears < 0 || f.ExperienceYears > maxExperienceYears {
		return f, fmt.Errorf("%w: experience must be between 0 and %d", insights.ErrInvalidInput, maxExperienceYears)
	}
	f.Bio = strings.TrimSpace(f.Bio)
	skills := make([]string, 0, len(f.Skills))
	for _, sk := range f.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}
	f.Skills = skills
	return f, nil
}

func (s *Service) now() time.Time {
	var c application.Clock = application.SystemClock{}
	if s.Clock != nil {
		c = s.Clock
	}
	return c.Now().UTC().Truncate(time.Microsecond)
}

func (s *Service) txTimeout() time.Duration {
	if s.TxTimeout > 0 {
		return s.TxTimeout
	}
	return defaultTxTimeout
}

func (s *Service) refreshAfter() time.Duration {
	if s.RefreshAfter > 0 {
		return s.RefreshAfter
	}
	return insights.DefaultRefreshAfter
}

func (s *Service) generationTimeout() time.Duration {
	if s.GenerationTimeout > 0 {
		return s.GenerationTimeout
	}
	return defaultGenerationTimeout
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

type noopMetrics struct{}

func (noopMetrics) CacheHit()         {}
func (noopMetrics) Generated()        {}
func (noopMetrics) GenerationFailed() {}

func (s *Service) metrics() Metrics {
	if s.Metrics != nil {
		return s.Metrics
	}
	return noopMetrics{}
}
