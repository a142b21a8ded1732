package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/pageturnapp/pageturn-server/internal/errors"
	"github.com/pageturnapp/pageturn-server/internal/store/sqlite"
)

func newTestStatsService(t *testing.T, clock *fakeClock) (*StatsService, *sqlite.Store) {
	t.Helper()
	store := newTestStore(t)
	svc := NewStatsService(store, testLogger())
	if clock != nil {
		svc.now = clock.Now
	}
	return svc, store
}

// seedFinishedSession writes a closed session directly through the reading
// service with a controlled clock.
func seedFinishedSession(t *testing.T, store *sqlite.Store, userID, bookID string, start time.Time, d time.Duration) {
	t.Helper()
	clock := newFakeClock(start)
	reading := NewReadingService(store, testLogger())
	reading.now = clock.Now

	ctx := context.Background()
	_, err := reading.StartReading(ctx, userID, bookID)
	require.NoError(t, err)
	clock.Advance(d)
	_, err = reading.StopReading(ctx, userID, bookID)
	require.NoError(t, err)
}

func TestRunAggregationWindows(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc, store := newTestStatsService(t, newFakeClock(now))
	ctx := context.Background()

	seedUser(t, store, "user-1")
	seedBook(t, store, "book-1", "Windowed Book")

	// Sessions finishing 5, 15 and 35 days ago, lasting 1h, 2h and 3h.
	// Only the first lands in the 7 day window; the first two land in the
	// 30 day window; the last is outside both.
	for _, tc := range []struct {
		daysAgo  int
		duration time.Duration
	}{
		{5, time.Hour},
		{15, 2 * time.Hour},
		{35, 3 * time.Hour},
	} {
		stop := now.AddDate(0, 0, -tc.daysAgo)
		seedFinishedSession(t, store, "user-1", "book-1", stop.Add(-tc.duration), tc.duration)
	}

	require.NoError(t, svc.RunAggregation(ctx))

	profile, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), profile.TotalReading7Days)
	assert.Equal(t, int64(10800), profile.TotalReading30Days)
}

func TestRunAggregationZeroSessions(t *testing.T) {
	svc, store := newTestStatsService(t, nil)
	ctx := context.Background()

	seedUser(t, store, "user-idle")

	require.NoError(t, svc.RunAggregation(ctx))

	profile, err := svc.GetProfile(ctx, "user-idle")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.TotalReading7Days)
	assert.Equal(t, int64(0), profile.TotalReading30Days)
}

func TestRunAggregationExcludesOpenSessions(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc, store := newTestStatsService(t, newFakeClock(now))
	ctx := context.Background()

	seedUser(t, store, "user-1")
	seedBook(t, store, "book-1", "Open Book")

	// An open session started an hour ago contributes nothing.
	clock := newFakeClock(now.Add(-time.Hour))
	reading := NewReadingService(store, testLogger())
	reading.now = clock.Now
	_, err := reading.StartReading(ctx, "user-1", "book-1")
	require.NoError(t, err)

	require.NoError(t, svc.RunAggregation(ctx))

	profile, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.TotalReading7Days)
	assert.Equal(t, int64(0), profile.TotalReading30Days)
}

func TestRunAggregationOverwritesStaleTotals(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := newFakeClock(now)
	svc, store := newTestStatsService(t, clock)
	ctx := context.Background()

	seedUser(t, store, "user-1")
	seedBook(t, store, "book-1", "Aging Book")

	// One hour finishing 6 days before the first run.
	stop := now.AddDate(0, 0, -6)
	seedFinishedSession(t, store, "user-1", "book-1", stop.Add(-time.Hour), time.Hour)

	require.NoError(t, svc.RunAggregation(ctx))
	profile, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), profile.TotalReading7Days)

	// Ten days later the session has aged out of the 7 day window but
	// still counts for 30 days.
	clock.Advance(10 * 24 * time.Hour)
	require.NoError(t, svc.RunAggregation(ctx))

	profile, err = svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.TotalReading7Days)
	assert.Equal(t, int64(3600), profile.TotalReading30Days)
}

func TestRunAggregationMultipleProfiles(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc, store := newTestStatsService(t, newFakeClock(now))
	ctx := context.Background()

	seedUser(t, store, "user-1")
	seedUser(t, store, "user-2")
	seedBook(t, store, "book-1", "Shared Book")

	stop := now.AddDate(0, 0, -1)
	seedFinishedSession(t, store, "user-1", "book-1", stop.Add(-time.Hour), time.Hour)
	seedFinishedSession(t, store, "user-2", "book-1", stop.Add(-2*time.Hour), 2*time.Hour)

	require.NoError(t, svc.RunAggregation(ctx))

	p1, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), p1.TotalReading7Days)

	p2, err := svc.GetProfile(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(7200), p2.TotalReading7Days)
}

func TestGetProfileNotFound(t *testing.T) {
	svc, _ := newTestStatsService(t, nil)

	_, err := svc.GetProfile(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
