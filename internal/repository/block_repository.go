package repository

import (
	"context"

	"github.com/ymatsuda/bookmates-backend/internal/model"
	"gorm.io/gorm"
)

type BlockRepository interface {
	// Create inserts the relation; a repeat of the same ordered pair
	// surfaces gorm.ErrDuplicatedKey from the unique index.
	Create(ctx context.Context, rel *model.BlockRelation) error
	Exists(ctx context.Context, blockerUID, blockedUID string) (bool, error)
	// BlockedUIDs lists everyone the viewer has blocked.
	BlockedUIDs(ctx context.Context, blockerUID string) ([]string, error)
	SetDB(db *gorm.DB)
}

type blockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *blockRepository) Create(ctx context.Context, rel *model.BlockRelation) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(rel).Error
}

func (r *blockRepository) Exists(ctx context.Context, blockerUID, blockedUID string) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.BlockRelation{}).
		Where("blocker_uid = ? AND blocked_uid = ?", blockerUID, blockedUID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *blockRepository) BlockedUIDs(ctx context.Context, blockerUID string) ([]string, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var uids []string
	err := r.db.WithContext(ctx).
		Model(&model.BlockRelation{}).
		Where("blocker_uid = ?", blockerUID).
		Pluck("blocked_uid", &uids).Error
	return uids, err
}
