package repository

import (
	"context"
	"errors"

	"github.com/ymatsuda/bookmates-backend/internal/model"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

type MessageRepository interface {
	// Create inserts the message; id and created_at are assigned by the
	// store atomically with the row.
	Create(ctx context.Context, msg *model.Message) error
	// History returns the full exchange between exactly two users,
	// ascending by (created_at, id). Symmetric in its arguments.
	History(ctx context.Context, userA, userB string) ([]model.Message, error)
	// InboxRaw returns every message touching the user, descending by
	// (created_at, id). Consumed only by the conversation aggregator.
	InboxRaw(ctx context.Context, uid string) ([]model.Message, error)
	// MarkRead flips read=true for unread messages sent by partnerUID to
	// uid and reports how many rows changed. The condition is evaluated
	// against the statement's snapshot, so rows inserted concurrently
	// stay unread.
	MarkRead(ctx context.Context, uid, partnerUID string) (int64, error)
	CountUnread(ctx context.Context, uid string) (int64, error)
	CountUnreadFrom(ctx context.Context, uid, partnerUID string) (int64, error)
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) History(ctx context.Context, userA, userB string) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("(sender_uid = ? AND receiver_uid = ?) OR (sender_uid = ? AND receiver_uid = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) InboxRaw(ctx context.Context, uid string) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("sender_uid = ? OR receiver_uid = ?", uid, uid).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, uid, partnerUID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("receiver_uid = ? AND sender_uid = ? AND `read` = ?", uid, partnerUID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

func (r *messageRepository) CountUnread(ctx context.Context, uid string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("receiver_uid = ? AND `read` = ?", uid, false).
		Count(&cnt).Error
	return cnt, err
}

func (r *messageRepository) CountUnreadFrom(ctx context.Context, uid, partnerUID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("receiver_uid = ? AND sender_uid = ? AND `read` = ?", uid, partnerUID, false).
		Count(&cnt).Error
	return cnt, err
}
