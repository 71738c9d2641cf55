package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/ymatsuda/bookmates-backend/internal/model"
	"github.com/ymatsuda/bookmates-backend/internal/service"
)

type ListingHandler struct {
	listings service.ListingService
}

func NewListingHandler(listings service.ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

type CreateListingRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Price  uint   `json:"price"`
}

type UpdateListingStatusRequest struct {
	Status string `json:"status"`
}

type ListingFeedResponse struct {
	Listings []model.Listing `json:"listings"`
	Total    int64           `json:"total"`
}

func (h *ListingHandler) Create(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	listing, err := h.listings.Create(c.Request().Context(), uid, req.Title, req.Author, req.Price)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, listing)
}

func (h *ListingHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid listing id"))
	}
	listing, err := h.listings.Get(c.Request().Context(), id)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}

// List serves the feed; when the caller is authenticated, listings from
// blocked owners are hidden.
func (h *ListingHandler) List(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	listings, total, err := h.listings.ListFeed(c.Request().Context(), uid, limit, offset)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, ListingFeedResponse{Listings: listings, Total: total})
}

func (h *ListingHandler) UpdateStatus(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid listing id"))
	}
	var req UpdateListingStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if err := h.listings.UpdateStatus(c.Request().Context(), uid, id, req.Status); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
