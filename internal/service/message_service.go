package service

import (
	"context"
	"strings"

	"github.com/ymatsuda/bookmates-backend/internal/apperr"
	"github.com/ymatsuda/bookmates-backend/internal/fanout"
	"github.com/ymatsuda/bookmates-backend/internal/model"
	"github.com/ymatsuda/bookmates-backend/internal/repository"
)

type MessageService interface {
	// Send validates, checks the block registry, inserts, and publishes
	// the insert event. Publication happens only after the durable
	// insert; subscribers dedup by message id.
	Send(ctx context.Context, senderUID, receiverUID string, listingID *uint64, content string) (*model.Message, error)
	History(ctx context.Context, viewerUID, partnerUID string) ([]model.Message, error)
	// MarkRead flips unread messages from partnerUID to viewerUID and
	// returns the number of rows changed. Idempotent.
	MarkRead(ctx context.Context, viewerUID, partnerUID string) (int64, error)
}

type messageService struct {
	msgRepo repository.MessageRepository
	blocks  BlockService
	unread  UnreadService
	broker  *fanout.Broker
}

func NewMessageService(msgRepo repository.MessageRepository, blocks BlockService, unread UnreadService, broker *fanout.Broker) MessageService {
	return &messageService{msgRepo: msgRepo, blocks: blocks, unread: unread, broker: broker}
}

func (s *messageService) Send(ctx context.Context, senderUID, receiverUID string, listingID *uint64, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("content is required")
	}
	if receiverUID == "" {
		return nil, apperr.Validation("receiver uid is required")
	}
	if senderUID == receiverUID {
		return nil, apperr.Validation("cannot message yourself")
	}

	refused, err := s.blocks.Refuses(ctx, senderUID, receiverUID)
	if err != nil {
		return nil, err
	}
	if refused {
		return nil, apperr.Blocked("messaging is blocked between these users")
	}

	msg := &model.Message{
		SenderUID:   senderUID,
		ReceiverUID: receiverUID,
		ListingID:   listingID,
		Content:     content,
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, storeErr("message insert", err)
	}

	if s.broker != nil {
		s.broker.Publish(*msg)
	}
	return msg, nil
}

func (s *messageService) History(ctx context.Context, viewerUID, partnerUID string) ([]model.Message, error) {
	var msgs []model.Message
	err := withReadRetry(ctx, func() error {
		var err error
		msgs, err = s.msgRepo.History(ctx, viewerUID, partnerUID)
		return err
	})
	if err != nil {
		return nil, storeErr("history", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

func (s *messageService) MarkRead(ctx context.Context, viewerUID, partnerUID string) (int64, error) {
	n, err := s.msgRepo.MarkRead(ctx, viewerUID, partnerUID)
	if err != nil {
		return 0, storeErr("mark read", err)
	}
	if n > 0 && s.unread != nil {
		s.unread.OnMarkRead(viewerUID, n)
	}
	return n, nil
}
