package service

import (
	"context"
	"testing"

	"github.com/ymatsuda/bookmates-backend/internal/apperr"
	"github.com/ymatsuda/bookmates-backend/internal/fanout"
)

func newMessageFixture(t *testing.T, blockBoth bool) (MessageService, *fakeMessageRepo, BlockService, UnreadService) {
	t.Helper()
	msgRepo := newFakeMessageRepo()
	blocks := NewBlockService(newFakeBlockRepo(), blockBoth)
	unread := NewUnreadService(msgRepo)
	broker := fanout.NewBroker()
	go broker.Run()
	t.Cleanup(broker.Stop)
	return NewMessageService(msgRepo, blocks, unread, broker), msgRepo, blocks, unread
}

func TestSendValidation(t *testing.T) {
	svc, _, _, _ := newMessageFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name     string
		sender   string
		receiver string
		content  string
	}{
		{"empty content", "alice", "bob", ""},
		{"whitespace content", "alice", "bob", "   \t\n"},
		{"self message", "alice", "alice", "hi"},
		{"missing receiver", "alice", "", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(ctx, tt.sender, tt.receiver, nil, tt.content)
			if !apperr.Is(err, apperr.CodeValidation) {
				t.Fatalf("err = %v, want VALIDATION", err)
			}
		})
	}
}

func TestSendRefusedWhenBlocked(t *testing.T) {
	svc, _, blocks, _ := newMessageFixture(t, true)
	ctx := context.Background()

	if _, err := blocks.Block(ctx, "alice", "bob", "spam"); err != nil {
		t.Fatalf("block: %v", err)
	}

	// Both directions refused under the default policy.
	if _, err := svc.Send(ctx, "alice", "bob", nil, "hello"); !apperr.Is(err, apperr.CodeBlocked) {
		t.Fatalf("blocker->blocked err = %v, want BLOCKED", err)
	}
	if _, err := svc.Send(ctx, "bob", "alice", nil, "hello"); !apperr.Is(err, apperr.CodeBlocked) {
		t.Fatalf("blocked->blocker err = %v, want BLOCKED", err)
	}
}

func TestSendOneWayBlockPolicy(t *testing.T) {
	svc, _, blocks, _ := newMessageFixture(t, false)
	ctx := context.Background()

	if _, err := blocks.Block(ctx, "alice", "bob", "spam"); err != nil {
		t.Fatalf("block: %v", err)
	}

	// One-way policy: only the party the receiver blocked is refused.
	if _, err := svc.Send(ctx, "bob", "alice", nil, "hello"); !apperr.Is(err, apperr.CodeBlocked) {
		t.Fatalf("blocked->blocker err = %v, want BLOCKED", err)
	}
	if _, err := svc.Send(ctx, "alice", "bob", nil, "hello"); err != nil {
		t.Fatalf("blocker->blocked err = %v, want nil", err)
	}
}

func TestHistorySymmetricAndOrdered(t *testing.T) {
	svc, _, _, _ := newMessageFixture(t, true)
	ctx := context.Background()

	for _, m := range []struct{ from, to, text string }{
		{"alice", "bob", "hi"},
		{"bob", "alice", "hey"},
		{"alice", "carol", "unrelated"},
		{"alice", "bob", "you there?"},
	} {
		if _, err := svc.Send(ctx, m.from, m.to, nil, m.text); err != nil {
			t.Fatalf("send %q: %v", m.text, err)
		}
	}

	ab, err := svc.History(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	ba, err := svc.History(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	if len(ab) != 3 {
		t.Fatalf("len = %d, want 3", len(ab))
	}
	for i := range ab {
		if ab[i].ID != ba[i].ID {
			t.Fatalf("history not symmetric at %d: %d vs %d", i, ab[i].ID, ba[i].ID)
		}
	}
	for i := 1; i < len(ab); i++ {
		if ab[i].CreatedAt.Before(ab[i-1].CreatedAt) {
			t.Fatalf("history out of order at %d", i)
		}
	}
	want := []string{"hi", "hey", "you there?"}
	for i, w := range want {
		if ab[i].Content != w {
			t.Fatalf("content[%d] = %q, want %q", i, ab[i].Content, w)
		}
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, _, _, unread := newMessageFixture(t, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Send(ctx, "bob", "alice", nil, "ping"); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	n, err := svc.MarkRead(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 3 {
		t.Fatalf("first sweep updated %d, want 3", n)
	}

	n, err = svc.MarkRead(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep updated %d, want 0", n)
	}

	cnt, err := unread.Count(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("count = %d, want 0", cnt)
	}
}

func TestMarkReadDoesNotTouchConcurrentInsert(t *testing.T) {
	svc, repo, _, _ := newMessageFixture(t, true)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "alice", "bob", nil, "first"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// The sweep only touches rows matching its snapshot condition; a
	// message inserted afterwards must land unread.
	if _, err := svc.MarkRead(ctx, "bob", "alice"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if _, err := svc.Send(ctx, "alice", "bob", nil, "second"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs, err := repo.History(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	last := msgs[len(msgs)-1]
	if last.Content != "second" || last.Read {
		t.Fatalf("new message state = %+v, want unread 'second'", last)
	}
	cnt, err := repo.CountUnread(ctx, "bob")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("unread = %d, want 1", cnt)
	}

	// A follow-up sweep catches it.
	n, err := svc.MarkRead(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 1 {
		t.Fatalf("follow-up sweep updated %d, want 1", n)
	}
}

func TestSendHistoryConversationEndToEnd(t *testing.T) {
	msgRepo := newFakeMessageRepo()
	blocks := NewBlockService(newFakeBlockRepo(), true)
	unread := NewUnreadService(msgRepo)
	broker := fanout.NewBroker()
	go broker.Run()
	t.Cleanup(broker.Stop)
	svc := NewMessageService(msgRepo, blocks, unread, broker)
	convs := NewConversationService(msgRepo, unread)
	ctx := context.Background()

	for _, m := range []struct{ from, to, text string }{
		{"alice", "bob", "hi"},
		{"bob", "alice", "hey"},
		{"alice", "bob", "you there?"},
	} {
		if _, err := svc.Send(ctx, m.from, m.to, nil, m.text); err != nil {
			t.Fatalf("send %q: %v", m.text, err)
		}
	}

	history, err := svc.History(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 || history[2].Content != "you there?" {
		t.Fatalf("unexpected history: %+v", history)
	}

	inbox, err := convs.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(inbox) != 1 {
		t.Fatalf("inbox len = %d, want 1", len(inbox))
	}
	conv := inbox[0]
	if conv.PartnerUID != "bob" || conv.LastMessage.Content != "you there?" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if conv.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1 (bob's hey)", conv.UnreadCount)
	}

	before, err := unread.Count(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if _, err := svc.MarkRead(ctx, "alice", "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	after, err := unread.Count(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if before-after != 1 {
		t.Fatalf("count dropped by %d, want 1", before-after)
	}
}
