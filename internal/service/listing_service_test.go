package service

import (
	"context"
	"testing"

	"github.com/ymatsuda/bookmates-backend/internal/apperr"
	"github.com/ymatsuda/bookmates-backend/internal/model"
)

func newListingFixture() (ListingService, *fakeListingRepo, BlockService) {
	repo := newFakeListingRepo()
	blocks := NewBlockService(newFakeBlockRepo(), true)
	return NewListingService(repo, blocks), repo, blocks
}

func TestCreateListingValidation(t *testing.T) {
	svc, _, _ := newListingFixture()
	_, err := svc.Create(context.Background(), "alice", "  ", "anon", 500)
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("err = %v, want VALIDATION", err)
	}
}

func TestGetListingNotFound(t *testing.T) {
	svc, _, _ := newListingFixture()
	_, err := svc.Get(context.Background(), 999)
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestFeedHidesBlockedOwners(t *testing.T) {
	svc, _, blocks := newListingFixture()
	ctx := context.Background()

	for _, l := range []struct{ owner, title string }{
		{"bob", "Kafka on the Shore"},
		{"carol", "Norwegian Wood"},
		{"dave", "1Q84"},
	} {
		if _, err := svc.Create(ctx, l.owner, l.title, "Murakami", 800); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := blocks.Block(ctx, "viewer", "carol", "spam"); err != nil {
		t.Fatalf("block: %v", err)
	}

	listings, total, err := svc.ListFeed(ctx, "viewer", 0, 0)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if total != 2 || len(listings) != 2 {
		t.Fatalf("feed = %d items (total %d), want 2", len(listings), total)
	}
	for _, l := range listings {
		if l.OwnerUID == "carol" {
			t.Fatalf("blocked owner's listing leaked into feed: %+v", l)
		}
	}

	// Anonymous viewers see everything.
	listings, total, err = svc.ListFeed(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if total != 3 || len(listings) != 3 {
		t.Fatalf("anonymous feed = %d items (total %d), want 3", len(listings), total)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, _, _ := newListingFixture()
	ctx := context.Background()

	listing, err := svc.Create(ctx, "alice", "Snow Country", "Kawabata", 600)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.UpdateStatus(ctx, "alice", listing.ID, "lost"); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("bad status err = %v, want VALIDATION", err)
	}
	if err := svc.UpdateStatus(ctx, "mallory", listing.ID, model.ListingStatusSold); !apperr.Is(err, apperr.CodeForbidden) {
		t.Fatalf("non-owner err = %v, want FORBIDDEN", err)
	}
	if err := svc.UpdateStatus(ctx, "alice", listing.ID, model.ListingStatusReserved); err != nil {
		t.Fatalf("owner update: %v", err)
	}

	got, err := svc.Get(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.ListingStatusReserved {
		t.Fatalf("status = %q, want %q", got.Status, model.ListingStatusReserved)
	}
}
