package ws

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"nhooyr.io/websocket"
)

// Handler upgrades authenticated HTTP requests to WebSocket sessions.
type Handler struct {
	gw *Gateway
}

func NewHandler(gw *Gateway) *Handler {
	return &Handler{gw: gw}
}

func (h *Handler) Serve(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// CORS policy is enforced by the HTTP middleware in front.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return err
	}

	client := NewClient(h.gw, conn, uid)
	h.gw.register(client)

	// Session resume: push the authoritative unread count first.
	if cnt, err := h.gw.unread.Recount(c.Request().Context(), uid); err == nil {
		client.enqueueEvent(EventTypeUnreadBadge, UnreadBadgePayload{Count: cnt})
	}

	go client.WritePump()
	go client.FanoutPump()
	client.ReadPump()
	return nil
}
