package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ymatsuda/bookmates-backend/internal/fanout"
	"github.com/ymatsuda/bookmates-backend/internal/repository"
)

// BadgeNotifier receives unread-count changes, fire and forget. The ws
// layer implements it to push badge updates to connected clients.
type BadgeNotifier interface {
	NotifyUnread(uid string, count int64)
}

type UnreadService interface {
	// Count serves from the cache when primed, otherwise recounts from
	// the store and primes the entry.
	Count(ctx context.Context, uid string) (int64, error)
	// CountWith is the per-pair unread count, always authoritative.
	CountWith(ctx context.Context, uid, partnerUID string) (int64, error)
	// Recount bypasses the cache; called on session resume and after any
	// gap in event delivery.
	Recount(ctx context.Context, uid string) (int64, error)
	// OnMarkRead subtracts n rows flipped by a mark-read sweep.
	OnMarkRead(uid string, n int64)
	SetBadgeNotifier(n BadgeNotifier)
	// Run consumes the fan-out stream, incrementing receivers' cached
	// counts. On a dropped subscription it resubscribes with capped
	// backoff and invalidates the cache. Call in a goroutine; returns
	// when Stop is called.
	Run(broker *fanout.Broker)
	Stop()
}

type unreadService struct {
	repo repository.MessageRepository

	mu       sync.Mutex
	cache    map[string]int64 // primed entries only
	notifier BadgeNotifier

	stop chan struct{}
}

func NewUnreadService(repo repository.MessageRepository) UnreadService {
	return &unreadService{
		repo:  repo,
		cache: make(map[string]int64),
		stop:  make(chan struct{}),
	}
}

func (s *unreadService) SetBadgeNotifier(n BadgeNotifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

func (s *unreadService) Count(ctx context.Context, uid string) (int64, error) {
	s.mu.Lock()
	if cnt, ok := s.cache[uid]; ok {
		s.mu.Unlock()
		return cnt, nil
	}
	s.mu.Unlock()
	return s.Recount(ctx, uid)
}

func (s *unreadService) CountWith(ctx context.Context, uid, partnerUID string) (int64, error) {
	var cnt int64
	err := withReadRetry(ctx, func() error {
		var err error
		cnt, err = s.repo.CountUnreadFrom(ctx, uid, partnerUID)
		return err
	})
	if err != nil {
		return 0, storeErr("unread count", err)
	}
	return cnt, nil
}

func (s *unreadService) Recount(ctx context.Context, uid string) (int64, error) {
	var cnt int64
	err := withReadRetry(ctx, func() error {
		var err error
		cnt, err = s.repo.CountUnread(ctx, uid)
		return err
	})
	if err != nil {
		return 0, storeErr("unread recount", err)
	}
	s.mu.Lock()
	s.cache[uid] = cnt
	notifier := s.notifier
	s.mu.Unlock()
	if notifier != nil {
		notifier.NotifyUnread(uid, cnt)
	}
	return cnt, nil
}

func (s *unreadService) OnMarkRead(uid string, n int64) {
	s.mu.Lock()
	cnt, primed := s.cache[uid]
	if primed {
		cnt -= n
		if cnt < 0 {
			cnt = 0
		}
		s.cache[uid] = cnt
	}
	notifier := s.notifier
	s.mu.Unlock()
	if primed && notifier != nil {
		notifier.NotifyUnread(uid, cnt)
	}
}

func (s *unreadService) onInsert(receiverUID string) {
	s.mu.Lock()
	cnt, primed := s.cache[receiverUID]
	if primed {
		cnt++
		s.cache[receiverUID] = cnt
	}
	notifier := s.notifier
	s.mu.Unlock()
	if primed && notifier != nil {
		notifier.NotifyUnread(receiverUID, cnt)
	}
}

// invalidate drops every primed entry; the next Count recounts.
func (s *unreadService) invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]int64)
	s.mu.Unlock()
}

func (s *unreadService) Run(broker *fanout.Broker) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		sub := broker.Subscribe("unread-tracker", 256)

	consume:
		for {
			select {
			case evt := <-sub.C():
				if evt.Type == fanout.EventInsert {
					s.onInsert(evt.Message.ReceiverUID)
				}
				backoff = 100 * time.Millisecond
			case <-sub.Done():
				// Gap in delivery: cached counts can no longer be
				// trusted until a recount.
				log.Printf("unread: subscription dropped, resubscribing in %s", backoff)
				s.invalidate()
				break consume
			case <-s.stop:
				broker.Unsubscribe(sub)
				return
			}
		}

		select {
		case <-time.After(backoff):
		case <-s.stop:
			return
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *unreadService) Stop() {
	close(s.stop)
}
