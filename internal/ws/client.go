package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ymatsuda/bookmates-backend/internal/apperr"
	"github.com/ymatsuda/bookmates-backend/internal/fanout"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	opTimeout      = 10 * time.Second
	sendBufSize    = 256
	fanoutBufSize  = 128
	resubBaseDelay = 100 * time.Millisecond
	resubMaxDelay  = 5 * time.Second
)

// Client is a single WebSocket connection plus its chat session.
type Client struct {
	gw     *Gateway
	conn   *websocket.Conn
	uid    string
	connID uuid.UUID

	mu   sync.Mutex
	sess *session

	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewClient(gw *Gateway, conn *websocket.Conn, uid string) *Client {
	return &Client{
		gw:     gw,
		conn:   conn,
		uid:    uid,
		connID: uuid.New(),
		sess:   newSession(),
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

// shutdown closes the session and wakes every pump. Safe to call more
// than once.
func (c *Client) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.sess.close()
		c.mu.Unlock()
		close(c.done)
	})
}

// ReadPump reads client events until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.gw.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: client %s disconnected", c.connID)
			} else {
				log.Printf("ws: read error from %s: %v", c.connID, err)
			}
			return
		}
		c.handleEvent(&event)
	}
}

// WritePump writes queued events and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.connID, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.connID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// FanoutPump consumes the broker stream, filtering by the client's own
// uid. When the subscription is dropped (slow consumer), it silently
// resubscribes with capped backoff and resyncs state, since the channel
// offers no replay.
func (c *Client) FanoutPump() {
	backoff := resubBaseDelay
	resync := false

	for {
		sub := c.gw.broker.Subscribe("ws-"+c.uid, fanoutBufSize)
		if resync {
			c.resync()
		}

	consume:
		for {
			select {
			case evt := <-sub.C():
				backoff = resubBaseDelay
				if evt.Type != fanout.EventInsert {
					continue
				}
				msg := evt.Message
				if msg.SenderUID != c.uid && msg.ReceiverUID != c.uid {
					continue
				}
				c.mu.Lock()
				appendIt := c.sess.shouldAppend(c.uid, msg)
				c.mu.Unlock()
				if appendIt {
					c.enqueueEvent(EventTypeMessageNew, MessagePayload{Message: msg})
				}

			case <-sub.Done():
				log.Printf("ws: %s fanout subscription dropped, resubscribing in %s", c.connID, backoff)
				break consume

			case <-c.done:
				c.gw.broker.Unsubscribe(sub)
				return
			}
		}

		select {
		case <-time.After(backoff):
		case <-c.done:
			return
		}
		if backoff *= 2; backoff > resubMaxDelay {
			backoff = resubMaxDelay
		}
		resync = true
	}
}

// resync closes the delivery gap after a resubscription: authoritative
// unread recount plus a fresh history snapshot for the open
// conversation.
func (c *Client) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := c.gw.unread.Recount(ctx, c.uid); err != nil {
		log.Printf("ws: %s unread recount failed: %v", c.connID, err)
	}

	c.mu.Lock()
	partner, open := c.sess.openPartner()
	c.mu.Unlock()
	if !open {
		return
	}

	history, err := c.gw.messages.History(ctx, c.uid, partner)
	if err != nil {
		log.Printf("ws: %s history resync failed: %v", c.connID, err)
		return
	}
	c.mu.Lock()
	if c.sess.beginLoad(partner) {
		c.sess.activate(history)
	}
	c.mu.Unlock()
	c.enqueueEvent(EventTypeConversationHistory, ConversationHistoryPayload{
		PartnerUID: partner,
		Messages:   history,
	})
}

func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeConversationOpen:
		var p ConversationOpenPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("VALIDATION", "invalid conversation.open payload", "")
			return
		}
		c.openConversation(p.PartnerUID)

	case EventTypeConversationClose:
		c.mu.Lock()
		c.sess.reset()
		c.mu.Unlock()

	case EventTypeMessageSend:
		var p MessageSendPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("VALIDATION", "invalid message.send payload", "")
			return
		}
		c.sendMessage(&p)

	case EventTypePing:
		c.enqueue(Event{Type: EventTypePong})

	default:
		c.sendError("VALIDATION", "unknown event type: "+event.Type, "")
	}
}

// openConversation runs the loading sequence: fetch history, sweep
// unread messages from the partner, then activate with the snapshot
// seeding the dedup set.
func (c *Client) openConversation(partnerUID string) {
	if partnerUID == "" || partnerUID == c.uid {
		c.sendError("VALIDATION", "invalid partner uid", "")
		return
	}

	c.mu.Lock()
	ok := c.sess.beginLoad(partnerUID)
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	history, err := c.gw.messages.History(ctx, c.uid, partnerUID)
	if err != nil {
		c.mu.Lock()
		c.sess.reset()
		c.mu.Unlock()
		c.sendAppError(err, "")
		return
	}

	if _, err := c.gw.messages.MarkRead(ctx, c.uid, partnerUID); err != nil {
		// The conversation still opens; the sweep failure is reported,
		// not swallowed.
		c.sendAppError(err, "")
	}

	c.mu.Lock()
	replay := c.sess.activate(history)
	c.mu.Unlock()

	c.enqueueEvent(EventTypeConversationHistory, ConversationHistoryPayload{
		PartnerUID: partnerUID,
		Messages:   history,
	})
	// Pair events that raced the history fetch, minus snapshot dupes.
	for _, msg := range replay {
		c.enqueueEvent(EventTypeMessageNew, MessagePayload{Message: msg})
	}
}

func (c *Client) sendMessage(p *MessageSendPayload) {
	c.mu.Lock()
	ok := c.sess.beginSend()
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	msg, err := c.gw.messages.Send(ctx, c.uid, p.ReceiverUID, p.ListingID, p.Content)

	c.mu.Lock()
	c.sess.endSend()
	c.mu.Unlock()

	if err != nil {
		c.sendAppError(err, p.Nonce)
		return
	}
	// The message itself arrives through the fan-out path and is
	// deduplicated there; the ack only resolves the pending input.
	c.enqueueEvent(EventTypeMessageAck, MessageAckPayload{Nonce: p.Nonce, MessageID: msg.ID})
}

func (c *Client) enqueueEvent(eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		log.Printf("ws: marshal error: %v", err)
		return
	}
	c.enqueue(*evt)
}

func (c *Client) enqueue(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		// A full buffer means the reader cannot keep up. Dropping a
		// delivery here would silently diverge the transcript, since
		// the dedup set already holds its id and suppresses any
		// redelivery. Close the connection instead; the client
		// reconnects and refetches.
		log.Printf("ws: %s send buffer full, closing connection", c.connID)
		c.shutdown()
	}
}

func (c *Client) sendAppError(err error, nonce string) {
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		c.sendError(string(ae.Code), ae.Message, nonce)
		return
	}
	c.sendError(string(apperr.CodeInternal), "internal error", nonce)
}

func (c *Client) sendError(code, message, nonce string) {
	c.enqueueEvent(EventTypeError, ErrorPayload{Code: code, Message: message, Nonce: nonce})
}
