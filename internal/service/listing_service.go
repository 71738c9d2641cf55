package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ymatsuda/bookmates-backend/internal/apperr"
	"github.com/ymatsuda/bookmates-backend/internal/model"
	"github.com/ymatsuda/bookmates-backend/internal/repository"
	"gorm.io/gorm"
)

type ListingService interface {
	Create(ctx context.Context, ownerUID, title, author string, price uint) (*model.Listing, error)
	Get(ctx context.Context, id uint64) (*model.Listing, error)
	// ListFeed returns the feed for the viewer, hiding listings owned by
	// anyone the viewer has blocked. viewerUID may be empty (anonymous).
	ListFeed(ctx context.Context, viewerUID string, limit, offset int) ([]model.Listing, int64, error)
	UpdateStatus(ctx context.Context, actorUID string, id uint64, status string) error
}

type listingService struct {
	repo   repository.ListingRepository
	blocks BlockService
}

func NewListingService(repo repository.ListingRepository, blocks BlockService) ListingService {
	return &listingService{repo: repo, blocks: blocks}
}

func (s *listingService) Create(ctx context.Context, ownerUID, title, author string, price uint) (*model.Listing, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperr.Validation("title is required")
	}
	listing := &model.Listing{
		OwnerUID: ownerUID,
		Title:    title,
		Author:   author,
		Price:    price,
		Status:   model.ListingStatusAvailable,
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, storeErr("listing insert", err)
	}
	return listing, nil
}

func (s *listingService) Get(ctx context.Context, id uint64) (*model.Listing, error) {
	var listing *model.Listing
	err := withReadRetry(ctx, func() error {
		var err error
		listing, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("listing not found")
		}
		return nil, storeErr("listing lookup", err)
	}
	return listing, nil
}

func (s *listingService) ListFeed(ctx context.Context, viewerUID string, limit, offset int) ([]model.Listing, int64, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var exclude []string
	if viewerUID != "" {
		var err error
		exclude, err = s.blocks.BlockedByViewer(ctx, viewerUID)
		if err != nil {
			return nil, 0, err
		}
	}

	var (
		listings []model.Listing
		total    int64
	)
	err := withReadRetry(ctx, func() error {
		var err error
		listings, total, err = s.repo.List(ctx, exclude, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, storeErr("listing feed", err)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	return listings, total, nil
}

func (s *listingService) UpdateStatus(ctx context.Context, actorUID string, id uint64, status string) error {
	switch status {
	case model.ListingStatusAvailable, model.ListingStatusReserved, model.ListingStatusSold:
	default:
		return apperr.Validation("invalid status")
	}

	listing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if listing.OwnerUID != actorUID {
		return apperr.Forbidden("only the owner can change listing status")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return storeErr("listing status update", err)
	}
	return nil
}
