package service

import (
	"context"
	"sync"
	"time"

	"github.com/ymatsuda/bookmates-backend/internal/model"
	"gorm.io/gorm"
)

// In-memory stand-ins for the gorm repositories. They reproduce the
// store's contract: monotonic (created_at, id) ordering and
// condition-scoped mark-read sweeps.

type fakeMessageRepo struct {
	mu     sync.Mutex
	msgs   []model.Message
	nextID uint64
	base   time.Time
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{base: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeMessageRepo) SetDB(db *gorm.DB) {}

func (f *fakeMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = f.base.Add(time.Duration(f.nextID) * time.Second)
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeMessageRepo) History(ctx context.Context, userA, userB string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.msgs {
		if (m.SenderUID == userA && m.ReceiverUID == userB) ||
			(m.SenderUID == userB && m.ReceiverUID == userA) {
			out = append(out, m)
		}
	}
	// msgs is kept in insertion order, which equals (created_at, id).
	return out, nil
}

func (f *fakeMessageRepo) InboxRaw(ctx context.Context, uid string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for i := len(f.msgs) - 1; i >= 0; i-- {
		m := f.msgs[i]
		if m.SenderUID == uid || m.ReceiverUID == uid {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) MarkRead(ctx context.Context, uid, partnerUID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.msgs {
		m := &f.msgs[i]
		if m.ReceiverUID == uid && m.SenderUID == partnerUID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) CountUnread(ctx context.Context, uid string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.ReceiverUID == uid && !m.Read {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) CountUnreadFrom(ctx context.Context, uid, partnerUID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.ReceiverUID == uid && m.SenderUID == partnerUID && !m.Read {
			n++
		}
	}
	return n, nil
}

type fakeBlockRepo struct {
	mu   sync.Mutex
	rels []model.BlockRelation
}

func newFakeBlockRepo() *fakeBlockRepo { return &fakeBlockRepo{} }

func (f *fakeBlockRepo) SetDB(db *gorm.DB) {}

func (f *fakeBlockRepo) Create(ctx context.Context, rel *model.BlockRelation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rels {
		if r.BlockerUID == rel.BlockerUID && r.BlockedUID == rel.BlockedUID {
			return gorm.ErrDuplicatedKey
		}
	}
	rel.ID = uint64(len(f.rels) + 1)
	f.rels = append(f.rels, *rel)
	return nil
}

func (f *fakeBlockRepo) Exists(ctx context.Context, blockerUID, blockedUID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rels {
		if r.BlockerUID == blockerUID && r.BlockedUID == blockedUID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBlockRepo) BlockedUIDs(ctx context.Context, blockerUID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.rels {
		if r.BlockerUID == blockerUID {
			out = append(out, r.BlockedUID)
		}
	}
	return out, nil
}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings []model.Listing
}

func newFakeListingRepo() *fakeListingRepo { return &fakeListingRepo{} }

func (f *fakeListingRepo) SetDB(db *gorm.DB) {}

func (f *fakeListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing.ID = uint64(len(f.listings) + 1)
	f.listings = append(f.listings, *listing)
	return nil
}

func (f *fakeListingRepo) FindByID(ctx context.Context, id uint64) (*model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.listings {
		if l.ID == id {
			out := l
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeListingRepo) List(ctx context.Context, excludeOwners []string, limit, offset int) ([]model.Listing, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	excluded := make(map[string]struct{}, len(excludeOwners))
	for _, uid := range excludeOwners {
		excluded[uid] = struct{}{}
	}
	var out []model.Listing
	for _, l := range f.listings {
		if _, skip := excluded[l.OwnerUID]; skip {
			continue
		}
		out = append(out, l)
	}
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeListingRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.listings {
		if f.listings[i].ID == id {
			f.listings[i].Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}
