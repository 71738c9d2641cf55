package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ymatsuda/bookmates-backend/internal/service"
)

type BlockHandler struct {
	blocks service.BlockService
}

func NewBlockHandler(blocks service.BlockService) *BlockHandler {
	return &BlockHandler{blocks: blocks}
}

type BlockRequest struct {
	BlockedUID string `json:"blockedUid"`
	Reason     string `json:"reason"`
}

type BlockedListResponse struct {
	BlockedUIDs []string `json:"blockedUids"`
}

func (h *BlockHandler) Create(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req BlockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	reason := req.Reason
	if reason == "" {
		reason = "Manual block"
	}
	rel, err := h.blocks.Block(c.Request().Context(), uid, req.BlockedUID, reason)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, rel)
}

func (h *BlockHandler) List(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	uids, err := h.blocks.BlockedByViewer(c.Request().Context(), uid)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, BlockedListResponse{BlockedUIDs: uids})
}
