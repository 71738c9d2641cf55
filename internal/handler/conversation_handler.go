package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ymatsuda/bookmates-backend/internal/service"
)

type ConversationHandler struct {
	messages      service.MessageService
	conversations service.ConversationService
	unread        service.UnreadService
}

func NewConversationHandler(messages service.MessageService, conversations service.ConversationService, unread service.UnreadService) *ConversationHandler {
	return &ConversationHandler{messages: messages, conversations: conversations, unread: unread}
}

type SendMessageRequest struct {
	Content   string  `json:"content"`
	ListingID *uint64 `json:"listingId"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type UnreadResponse struct {
	Count int64 `json:"count"`
}

// List renders the inbox: one conversation per distinct partner.
func (h *ConversationHandler) List(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convs, err := h.conversations.ListConversations(c.Request().Context(), uid)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, convs)
}

func (h *ConversationHandler) History(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	partnerUID := c.Param("uid")
	if partnerUID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid partner uid"))
	}
	msgs, err := h.messages.History(c.Request().Context(), uid, partnerUID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ConversationHandler) Send(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	partnerUID := c.Param("uid")
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.messages.Send(c.Request().Context(), uid, partnerUID, req.ListingID, req.Content)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ConversationHandler) MarkRead(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	partnerUID := c.Param("uid")
	n, err := h.messages.MarkRead(c.Request().Context(), uid, partnerUID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, MarkReadResponse{Updated: n})
}

// Unread serves the badge count.
func (h *ConversationHandler) Unread(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	cnt, err := h.unread.Count(c.Request().Context(), uid)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, UnreadResponse{Count: cnt})
}
