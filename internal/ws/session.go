package ws

import "github.com/ymatsuda/bookmates-backend/internal/model"

type sessionState int

const (
	stateIdle sessionState = iota
	stateLoading
	stateActive
	stateSending
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateLoading:
		return "loading"
	case stateActive:
		return "active"
	case stateSending:
		return "sending"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// session tracks one open conversation per connection: which partner is
// open and which message ids are already in the client's transcript.
// The seen-set guards the fetch/subscribe race, where a message can be
// returned by the history fetch and also pushed by the fan-out channel.
// Events arriving while the snapshot is still loading are buffered in
// pending and replayed through the dedup on activation, so a message
// inserted between the history query and activation is not lost.
//
// Callers hold the owning Client's mutex; session itself is not
// goroutine safe.
type session struct {
	state      sessionState
	partnerUID string
	seen       map[uint64]struct{}
	pending    []model.Message
}

func newSession() *session {
	return &session{state: stateIdle}
}

// beginLoad enters loading for the given partner, discarding any
// previously open transcript.
func (s *session) beginLoad(partnerUID string) bool {
	if s.state == stateClosed {
		return false
	}
	s.state = stateLoading
	s.partnerUID = partnerUID
	s.seen = make(map[uint64]struct{})
	s.pending = nil
	return true
}

// activate seeds the seen-set from the fetched snapshot, enters the
// steady state, and returns the buffered events that raced the fetch
// and are not already in the snapshot, in arrival order.
func (s *session) activate(history []model.Message) []model.Message {
	if s.state != stateLoading {
		return nil
	}
	for _, msg := range history {
		s.seen[msg.ID] = struct{}{}
	}
	var replay []model.Message
	for _, msg := range s.pending {
		if _, dup := s.seen[msg.ID]; dup {
			continue
		}
		s.seen[msg.ID] = struct{}{}
		replay = append(replay, msg)
	}
	s.pending = nil
	s.state = stateActive
	return replay
}

// beginSend marks the transient send state. Returns false when the
// session cannot send (already closed).
func (s *session) beginSend() bool {
	if s.state == stateClosed {
		return false
	}
	if s.state == stateActive {
		s.state = stateSending
	}
	return true
}

// endSend returns to the steady state regardless of send outcome; on
// failure the client keeps its input and may retry.
func (s *session) endSend() {
	if s.state == stateSending {
		s.state = stateActive
	}
}

// shouldAppend reports whether an incoming insert event belongs to the
// open conversation and has not been seen yet; the id is recorded when
// it does. While the snapshot is loading, pair events are buffered for
// replay by activate instead of appended.
func (s *session) shouldAppend(viewerUID string, msg model.Message) bool {
	pair := (msg.SenderUID == viewerUID && msg.ReceiverUID == s.partnerUID) ||
		(msg.SenderUID == s.partnerUID && msg.ReceiverUID == viewerUID)
	if s.state == stateLoading {
		if pair {
			s.pending = append(s.pending, msg)
		}
		return false
	}
	if s.state != stateActive && s.state != stateSending {
		return false
	}
	if !pair {
		return false
	}
	if _, dup := s.seen[msg.ID]; dup {
		return false
	}
	s.seen[msg.ID] = struct{}{}
	return true
}

// reset returns to idle, discarding the transcript.
func (s *session) reset() {
	if s.state == stateClosed {
		return
	}
	s.state = stateIdle
	s.partnerUID = ""
	s.seen = nil
	s.pending = nil
}

// close is terminal.
func (s *session) close() {
	s.state = stateClosed
	s.partnerUID = ""
	s.seen = nil
	s.pending = nil
}

func (s *session) openPartner() (string, bool) {
	if s.state == stateActive || s.state == stateSending || s.state == stateLoading {
		return s.partnerUID, true
	}
	return "", false
}
