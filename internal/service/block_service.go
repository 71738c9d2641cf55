package service

import (
	"context"
	"errors"

	"github.com/ymatsuda/bookmates-backend/internal/apperr"
	"github.com/ymatsuda/bookmates-backend/internal/model"
	"github.com/ymatsuda/bookmates-backend/internal/repository"
	"gorm.io/gorm"
)

type BlockService interface {
	Block(ctx context.Context, blockerUID, blockedUID, reason string) (*model.BlockRelation, error)
	// IsBlocked is directional: has a blocked b.
	IsBlocked(ctx context.Context, a, b string) (bool, error)
	// Refuses reports whether a send from senderUID to receiverUID must
	// be rejected under the configured direction policy.
	Refuses(ctx context.Context, senderUID, receiverUID string) (bool, error)
	BlockedByViewer(ctx context.Context, viewerUID string) ([]string, error)
}

type blockService struct {
	repo repository.BlockRepository
	// bothDirections: when true, a block in either direction refuses the
	// send; when false, only the party the receiver has blocked is
	// refused. Product left this ambiguous, so it is configuration.
	bothDirections bool
}

func NewBlockService(repo repository.BlockRepository, bothDirections bool) BlockService {
	return &blockService{repo: repo, bothDirections: bothDirections}
}

func (s *blockService) Block(ctx context.Context, blockerUID, blockedUID, reason string) (*model.BlockRelation, error) {
	if blockerUID == blockedUID {
		return nil, apperr.Validation("cannot block yourself")
	}
	if blockedUID == "" {
		return nil, apperr.Validation("blocked uid is required")
	}

	exists, err := s.repo.Exists(ctx, blockerUID, blockedUID)
	if err != nil {
		return nil, storeErr("block lookup", err)
	}
	if exists {
		return nil, apperr.Duplicate("user already blocked")
	}

	rel := &model.BlockRelation{
		BlockerUID: blockerUID,
		BlockedUID: blockedUID,
		Reason:     reason,
	}
	if err := s.repo.Create(ctx, rel); err != nil {
		// The unique index catches the pre-check race.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Duplicate("user already blocked")
		}
		return nil, storeErr("block insert", err)
	}
	return rel, nil
}

func (s *blockService) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var blocked bool
	err := withReadRetry(ctx, func() error {
		var err error
		blocked, err = s.repo.Exists(ctx, a, b)
		return err
	})
	if err != nil {
		return false, storeErr("block lookup", err)
	}
	return blocked, nil
}

func (s *blockService) Refuses(ctx context.Context, senderUID, receiverUID string) (bool, error) {
	// The receiver having blocked the sender always refuses.
	blocked, err := s.IsBlocked(ctx, receiverUID, senderUID)
	if err != nil || blocked {
		return blocked, err
	}
	if !s.bothDirections {
		return false, nil
	}
	return s.IsBlocked(ctx, senderUID, receiverUID)
}

func (s *blockService) BlockedByViewer(ctx context.Context, viewerUID string) ([]string, error) {
	var uids []string
	err := withReadRetry(ctx, func() error {
		var err error
		uids, err = s.repo.BlockedUIDs(ctx, viewerUID)
		return err
	})
	if err != nil {
		return nil, storeErr("blocked list", err)
	}
	if uids == nil {
		uids = []string{}
	}
	return uids, nil
}
