package service

import (
	"context"

	"github.com/ymatsuda/bookmates-backend/internal/model"
	"github.com/ymatsuda/bookmates-backend/internal/repository"
)

type ConversationService interface {
	// ListConversations derives the inbox view: one entry per distinct
	// partner, newest exchange first.
	ListConversations(ctx context.Context, viewerUID string) ([]model.Conversation, error)
}

type conversationService struct {
	msgRepo repository.MessageRepository
	unread  UnreadService
}

func NewConversationService(msgRepo repository.MessageRepository, unread UnreadService) ConversationService {
	return &conversationService{msgRepo: msgRepo, unread: unread}
}

func (s *conversationService) ListConversations(ctx context.Context, viewerUID string) ([]model.Conversation, error) {
	var msgs []model.Message
	err := withReadRetry(ctx, func() error {
		var err error
		msgs, err = s.msgRepo.InboxRaw(ctx, viewerUID)
		return err
	})
	if err != nil {
		return nil, storeErr("inbox scan", err)
	}

	// Single pass over the descending scan: the first message seen for a
	// partner is the newest one, so first occurrence wins and the result
	// comes out already ordered by last activity.
	seen := make(map[string]struct{})
	convs := make([]model.Conversation, 0)
	for _, msg := range msgs {
		partner := msg.PartnerOf(viewerUID)
		if _, ok := seen[partner]; ok {
			continue
		}
		seen[partner] = struct{}{}
		convs = append(convs, model.Conversation{
			PartnerUID:  partner,
			LastMessage: msg,
			LastAt:      msg.CreatedAt,
			ListingID:   msg.ListingID,
		})
	}

	for i := range convs {
		cnt, err := s.unread.CountWith(ctx, viewerUID, convs[i].PartnerUID)
		if err != nil {
			return nil, err
		}
		convs[i].UnreadCount = cnt
	}
	return convs, nil
}
