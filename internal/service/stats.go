package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pageturnapp/pageturn-server/internal/domain"
	domainerrors "github.com/pageturnapp/pageturn-server/internal/errors"
	"github.com/pageturnapp/pageturn-server/internal/store"
	"github.com/pageturnapp/pageturn-server/internal/store/sqlite"
)

// StatsService computes the rolling 7 and 30 day reading totals stored on
// profiles. The aggregation runs periodically in the background; profiles
// hold the last computed snapshot rather than live values.
type StatsService struct {
	store  *sqlite.Store
	logger *slog.Logger

	now func() time.Time
}

// NewStatsService creates a new statistics service.
func NewStatsService(store *sqlite.Store, logger *slog.Logger) *StatsService {
	return &StatsService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetProfile returns a user's profile with its current reading totals.
func (s *StatsService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("Profile not found")
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// RunAggregation recomputes the 7 and 30 day totals for every profile.
// Sessions count toward a window when their stop time falls inside it;
// open sessions are excluded entirely. Totals are overwritten, so sessions
// aging out of a window drop off on the next run.
//
// A failure on one profile is logged and skipped; the rest still update.
func (s *StatsService) RunAggregation(ctx context.Context) error {
	started := s.now().UTC()
	cutoff7 := started.Add(-7 * 24 * time.Hour)
	cutoff30 := started.Add(-30 * 24 * time.Hour)

	userIDs, err := s.store.ListProfileUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}

	var failed int
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.aggregateUser(ctx, userID, cutoff7, cutoff30, started); err != nil {
			failed++
			s.logger.Error("aggregate reading stats failed",
				"user_id", userID,
				"error", err,
			)
		}
	}

	s.logger.Info("reading stats aggregation complete",
		"profiles", len(userIDs),
		"failed", failed,
		"elapsed", s.now().UTC().Sub(started),
	)
	return nil
}

func (s *StatsService) aggregateUser(ctx context.Context, userID string, cutoff7, cutoff30, at time.Time) error {
	total7, err := s.store.SumReadingDurationsSince(ctx, userID, cutoff7)
	if err != nil {
		return fmt.Errorf("sum 7 day window: %w", err)
	}
	total30, err := s.store.SumReadingDurationsSince(ctx, userID, cutoff30)
	if err != nil {
		return fmt.Errorf("sum 30 day window: %w", err)
	}

	if err := s.store.UpdateProfileTotals(ctx, userID, total7, total30, at); err != nil {
		return fmt.Errorf("update profile totals: %w", err)
	}
	return nil
}
