package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/career-insight/internal/domain/insights"
	"github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

var t0 = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func payload(outlook insights.MarketOutlook) insights.Payload {
	return insights.Payload{
		MarketOutlook:     outlook,
		GrowthRate:        3,
		DemandLevel:       insights.DemandMedium,
		TopSkills:         []string{"Go"},
		KeyTrends:         []string{"AI"},
		RecommendedSkills: []string{"SQL"},
		SalaryRanges:      []insights.SalaryRange{{Role: "SWE", Min: 1, Max: 3, Median: 2, Location: "US"}},
	}
}

func TestStore_UpsertIfAbsentKeepsFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	var first, second *insights.Report
	require.NoError(t, s.RunInTx(ctx, func(tx insights.Tx) error {
		var err error
		first, err = tx.UpsertIfAbsent(ctx, "fintech", payload(insights.OutlookPositive), t0, 0)
		return err
	}))
	require.NoError(t, s.RunInTx(ctx, func(tx insights.Tx) error {
		var err error
		second, err = tx.UpsertIfAbsent(ctx, "fintech", payload(insights.OutlookNegative), t0.Add(time.Hour), 0)
		return err
	}))

	assert.Equal(t, first, second)
	assert.Equal(t, insights.OutlookPositive, second.MarketOutlook)
	assert.Equal(t, t0.Add(insights.DefaultRefreshAfter), second.NextRefreshDue)
}

func TestStore_RollbackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx insights.Tx) error {
		if _, err := tx.UpsertIfAbsent(ctx, "fintech", payload(insights.OutlookPositive), t0, 0); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Find(ctx, "fintech")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_RollbackOnExpiredContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.RunInTx(ctx, func(tx insights.Tx) error {
		_, err := tx.UpsertIfAbsent(ctx, "fintech", payload(insights.OutlookPositive), t0, 0)
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	got, _ := s.Find(context.Background(), "fintech")
	assert.Nil(t, got)
}

func TestStore_RefreshCompareAndSwap(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.RunInTx(ctx, func(tx insights.Tx) error {
		_, err := tx.UpsertIfAbsent(ctx, "fintech", payload(insights.OutlookPositive), t0, 0)
		return err
	}))

	t1 := t0.Add(8 * 24 * time.Hour)
	var won *insights.Report
	require.NoError(t, s.RunInTx(ctx, func(tx insights.Tx) error {
		var err error
		won, err = tx.Refresh(ctx, "fintech", payload(insights.OutlookNeutral), t0, t1, 0)
		return err
	}))
	assert.Equal(t, t1, won.LastUpdated)

	// a second refresher that read the old row loses and sees the winner
	var lost *insights.Report
	require.NoError(t, s.RunInTx(ctx, func(tx insights.Tx) error {
		var err error
		lost, err = tx.Refresh(ctx, "fintech", payload(insights.OutlookNegative), t0, t1.Add(time.Minute), 0)
		return err
	}))
	assert.Equal(t, won, lost)
}

func TestStore_AttachUserCategory(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(tx insights.Tx) error {
		_, err := tx.AttachUserCategory(ctx, "u1", profiles.Fields{Category: "fintech"}, t0)
		return err
	})
	require.ErrorIs(t, err, insights.ErrProfileNotFound)

	_, err = s.Create(ctx, "u1")
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(tx insights.Tx) error {
		_, err := tx.AttachUserCategory(ctx, "u1", profiles.Fields{Category: "fintech"}, t0)
		return err
	})
	require.ErrorIs(t, err, insights.ErrStorage, "category must exist")

	require.NoError(t, s.RunInTx(ctx, func(tx insights.Tx) error {
		if _, err := tx.UpsertIfAbsent(ctx, "fintech", payload(insights.OutlookPositive), t0, 0); err != nil {
			return err
		}
		_, err := tx.AttachUserCategory(ctx, "u1", profiles.Fields{Category: "fintech", ExperienceYears: 4, Bio: "hi", Skills: []string{"Go"}}, t0)
		return err
	}))

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "fintech", p.Category)
	assert.Equal(t, 4, p.ExperienceYears)
	assert.True(t, p.Onboarded())
}

func TestStore_ListStale(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.RunInTx(ctx, func(tx insights.Tx) error {
		for i, c := range []string{"a", "b", "c"} {
			if _, err := tx.UpsertIfAbsent(ctx, c, payload(insights.OutlookPositive), t0.Add(time.Duration(i)*time.Hour), 24*time.Hour); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := s.ListStale(ctx, t0.Add(25*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = s.ListStale(ctx, t0.Add(48*time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}
