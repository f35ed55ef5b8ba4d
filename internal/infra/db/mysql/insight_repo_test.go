package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/career-insight/internal/domain/insights"
	"github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

var (
	t0      = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	cols    = []string{"category", "market_outlook", "growth_rate", "demand_level", "top_skills", "key_trends", "recommended_skills", "salary_ranges", "last_updated", "next_refresh_due"}
	fintech = insights.Payload{
		MarketOutlook:     insights.OutlookPositive,
		GrowthRate:        4.2,
		DemandLevel:       insights.DemandHigh,
		TopSkills:         []string{"Go"},
		KeyTrends:         []string{"Open banking"},
		RecommendedSkills: []string{"Kafka"},
		SalaryRanges:      []insights.SalaryRange{{Role: "Backend Engineer", Min: 90000, Max: 160000, Median: 120000, Location: "US"}},
	}
)

func newMock(t *testing.T) (*InsightRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewInsightRepository(db), mock
}

func existingRow(lastUpdated time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(cols).AddRow(
		"fintech", "Neutral", 1.5, "Medium",
		[]byte(`["Rust"]`), []byte(`["Regulation"]`), []byte(`["Compliance"]`),
		[]byte(`[{"role":"Analyst","min":50000,"max":80000,"median":60000,"location":"EU"}]`),
		lastUpdated, lastUpdated.Add(insights.DefaultRefreshAfter),
	)
}

func TestUpsertIfAbsent_Inserts(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO insight_reports")).
		WithArgs("fintech", "Positive", 4.2, "High", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), t0, t0.Add(insights.DefaultRefreshAfter)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var got *insights.Report
	err := repo.RunInTx(context.Background(), func(tx insights.Tx) error {
		var err error
		got, err = tx.UpsertIfAbsent(context.Background(), "fintech", fintech, t0, 0)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, t0, got.LastUpdated)
	assert.Equal(t, fintech.TopSkills, got.TopSkills)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIfAbsent_DuplicateReturnsExisting(t *testing.T) {
	repo, mock := newMock(t)
	earlier := t0.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO insight_reports")).
		WillReturnError(&driver.MySQLError{Number: 1062, Message: "Duplicate entry 'fintech' for key 'PRIMARY'"})
	mock.ExpectQuery(regexp.QuoteMeta("FROM insight_reports WHERE category = ? LOCK IN SHARE MODE")).
		WithArgs("fintech").
		WillReturnRows(existingRow(earlier))
	mock.ExpectCommit()

	var got *insights.Report
	err := repo.RunInTx(context.Background(), func(tx insights.Tx) error {
		var err error
		got, err = tx.UpsertIfAbsent(context.Background(), "fintech", fintech, t0, 0)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, insights.OutlookNeutral, got.MarketOutlook)
	assert.Equal(t, earlier, got.LastUpdated)
	assert.Equal(t, []string{"Rust"}, got.TopSkills)
	require.Len(t, got.SalaryRanges, 1)
	assert.Equal(t, int64(60000), got.SalaryRanges[0].Median)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIfAbsent_OtherErrorRollsBack(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO insight_reports")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), func(tx insights.Tx) error {
		_, err := tx.UpsertIfAbsent(context.Background(), "fintech", fintech, t0, 0)
		return err
	})
	require.ErrorIs(t, err, insights.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_LostRaceReturnsWinner(t *testing.T) {
	repo, mock := newMock(t)
	prev := t0.Add(-8 * 24 * time.Hour)
	winner := t0.Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE insight_reports SET")).
		WithArgs("Positive", 4.2, "High", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), t0, sqlmock.AnyArg(), "fintech", prev).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("LOCK IN SHARE MODE")).
		WithArgs("fintech").
		WillReturnRows(existingRow(winner))
	mock.ExpectCommit()

	var got *insights.Report
	err := repo.RunInTx(context.Background(), func(tx insights.Tx) error {
		var err error
		got, err = tx.Refresh(context.Background(), "fintech", fintech, prev, t0, 0)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, winner, got.LastUpdated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_Swaps(t *testing.T) {
	repo, mock := newMock(t)
	prev := t0.Add(-8 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE insight_reports SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var got *insights.Report
	err := repo.RunInTx(context.Background(), func(tx insights.Tx) error {
		var err error
		got, err = tx.Refresh(context.Background(), "fintech", fintech, prev, t0, 0)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, t0, got.LastUpdated)
	assert.Equal(t, insights.OutlookPositive, got.MarketOutlook)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFind_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM insight_reports WHERE category = ?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.Find(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttachUserCategory(t *testing.T) {
	repo, mock := newMock(t)
	profileCols := []string{"id", "category", "experience_years", "bio", "skills", "updated_at"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_profiles SET")).
		WithArgs("fintech", 3, "hello", []byte(`["Go"]`), t0, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles WHERE id = ?")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow("u1", "fintech", 3, "hello", []byte(`["Go"]`), t0))
	mock.ExpectCommit()

	var got *profiles.Profile
	err := repo.RunInTx(context.Background(), func(tx insights.Tx) error {
		var err error
		got, err = tx.AttachUserCategory(context.Background(), "u1", profiles.Fields{Category: "fintech", ExperienceYears: 3, Bio: " hello ", Skills: []string{"Go"}}, t0)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "fintech", got.Category)
	assert.Equal(t, []string{"Go"}, got.Skills)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachUserCategory_MissingProfile(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_profiles SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "category", "experience_years", "bio", "skills", "updated_at"}))
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), func(tx insights.Tx) error {
		_, err := tx.AttachUserCategory(context.Background(), "ghost", profiles.Fields{Category: "fintech"}, t0)
		return err
	})
	assert.ErrorIs(t, err, insights.ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStale(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category FROM insight_reports")).
		WithArgs(t0, 10).
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("a").AddRow("b"))

	got, err := repo.ListStale(context.Background(), t0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}
