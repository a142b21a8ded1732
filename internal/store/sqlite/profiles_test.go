package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pageturnapp/pageturn-server/internal/store"
)

func TestUpdateProfileTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestUser(t, s, "user-prof-1")

	now := time.Now().UTC()
	if err := s.UpdateProfileTotals(ctx, "user-prof-1", 3600, 10800, now); err != nil {
		t.Fatalf("UpdateProfileTotals: %v", err)
	}

	profile, err := s.GetProfile(ctx, "user-prof-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.TotalReading7Days != 3600 {
		t.Errorf("TotalReading7Days: got %d, want 3600", profile.TotalReading7Days)
	}
	if profile.TotalReading30Days != 10800 {
		t.Errorf("TotalReading30Days: got %d, want 10800", profile.TotalReading30Days)
	}

	// Totals are overwritten, not accumulated.
	if err := s.UpdateProfileTotals(ctx, "user-prof-1", 60, 120, now.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateProfileTotals overwrite: %v", err)
	}
	profile, err = s.GetProfile(ctx, "user-prof-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.TotalReading7Days != 60 || profile.TotalReading30Days != 120 {
		t.Errorf("totals: got %d/%d, want 60/120", profile.TotalReading7Days, profile.TotalReading30Days)
	}

	err = s.UpdateProfileTotals(ctx, "missing", 1, 2, now)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProfileUserIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.ListProfileUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListProfileUserIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no profiles, got %d", len(ids))
	}

	insertTestUser(t, s, "user-prof-b")
	insertTestUser(t, s, "user-prof-a")

	ids, err = s.ListProfileUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListProfileUserIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(ids))
	}
	if ids[0] != "user-prof-a" || ids[1] != "user-prof-b" {
		t.Errorf("ids: got %v", ids)
	}
}
