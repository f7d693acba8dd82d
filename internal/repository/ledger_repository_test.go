package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-lpr-service/internal/domain/parking"
)

func newTestRepo(t *testing.T) *LedgerRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&EventRecord{}))
	return NewLedgerRepository(db)
}

func insertAt(t *testing.T, repo *LedgerRepository, plate string, action parking.Action, ts time.Time, fee int64) *parking.Event {
	t.Helper()
	event := &parking.Event{
		Timestamp:      ts,
		DateKey:        parking.DateKeyOf(ts),
		Action:         action,
		VehicleClass:   parking.ClassCar,
		PlateCanonical: plate,
		PlateDisplay:   plate,
		Fee:            fee,
	}
	require.NoError(t, repo.InsertEvent(context.Background(), event, nil))
	return event
}

func TestInsertEventAssignsIncreasingIDs(t *testing.T) {
	repo := newTestRepo(t)
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	first := insertAt(t, repo, "29Z71140", parking.ActionIn, ts, 0)
	second := insertAt(t, repo, "29Z71140", parking.ActionOut, ts, 30000)

	assert.Greater(t, first.ID, int64(0))
	assert.Greater(t, second.ID, first.ID)
}

func TestMostRecentEventGlobalScope(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	yesterday := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	today := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

	got, err := repo.MostRecentEvent(ctx, "30A12345", parking.ScopeGlobal, today)
	require.NoError(t, err)
	assert.Nil(t, got, "no events yet")

	insertAt(t, repo, "30A12345", parking.ActionIn, yesterday, 0)
	insertAt(t, repo, "51B99999", parking.ActionIn, today, 0)

	got, err = repo.MostRecentEvent(ctx, "30A12345", parking.ScopeGlobal, today)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, parking.ActionIn, got.Action)
	assert.Equal(t, "2025-03-01", got.DateKey)
}

func TestMostRecentEventDayScope(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	yesterday := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	today := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

	insertAt(t, repo, "30A12345", parking.ActionIn, yesterday, 0)

	// Day scope does not see yesterday's IN.
	got, err := repo.MostRecentEvent(ctx, "30A12345", parking.ScopeDay, today)
	require.NoError(t, err)
	assert.Nil(t, got)

	insertAt(t, repo, "30A12345", parking.ActionIn, today, 0)
	got, err = repo.MostRecentEvent(ctx, "30A12345", parking.ScopeDay, today)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2025-03-02", got.DateKey)
}

func TestMostRecentInSkipsOutEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)

	in := insertAt(t, repo, "30A12345", parking.ActionIn, base, 0)
	insertAt(t, repo, "30A12345", parking.ActionOut, base.Add(time.Hour), 20000)

	got, err := repo.MostRecentIn(ctx, "30A12345", parking.ScopeGlobal, base.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, parking.ActionIn, got.Action)
}

func TestMostRecentOrderedByIDNotTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)

	// Two captures with the identical second-precision timestamp: id decides.
	insertAt(t, repo, "30A12345", parking.ActionIn, ts, 0)
	latest := insertAt(t, repo, "30A12345", parking.ActionOut, ts, 5000)

	got, err := repo.MostRecentEvent(ctx, "30A12345", parking.ScopeGlobal, ts)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest.ID, got.ID)
}

func TestDailySummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)

	insertAt(t, repo, "30A12345", parking.ActionIn, day, 0)
	insertAt(t, repo, "30A12345", parking.ActionOut, day.Add(time.Hour), 20000)
	insertAt(t, repo, "51B99999", parking.ActionOut, day.Add(2*time.Hour), 30000)
	// Different day must not leak in.
	insertAt(t, repo, "29Z71140", parking.ActionOut, day.AddDate(0, 0, 1), 99999)

	bike := &parking.Event{
		Timestamp:      day.Add(3 * time.Hour),
		DateKey:        parking.DateKeyOf(day),
		Action:         parking.ActionOut,
		VehicleClass:   parking.ClassMotorbike,
		PlateCanonical: "29L54321",
		Fee:            5000,
	}
	require.NoError(t, repo.InsertEvent(ctx, bike, nil))

	summary, err := repo.DailySummary(ctx, "2025-03-02")
	require.NoError(t, err)
	assert.Equal(t, int64(55000), summary.TotalFee)
	assert.Equal(t, int64(2), summary.OutCounts[parking.ClassCar])
	assert.Equal(t, int64(1), summary.OutCounts[parking.ClassMotorbike])
}

func TestRecentEventsOrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		insertAt(t, repo, "30A12345", parking.ActionIn, base.Add(time.Duration(i)*time.Minute), 0)
	}

	events, err := repo.RecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Greater(t, events[0].ID, events[1].ID)
	assert.Greater(t, events[1].ID, events[2].ID)

	// Zero limit falls back to the default page size.
	events, err = repo.RecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}
