package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ymatsuda/bookmates-backend/internal/apperr"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeBlocked, apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeDuplicate:
		return http.StatusConflict
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// jsonError maps a service error onto the response envelope.
func jsonError(c echo.Context, err error) error {
	code := apperr.CodeOf(err)
	msg := err.Error()
	if code == apperr.CodeUnknown || code == apperr.CodeInternal {
		code = apperr.CodeInternal
		msg = "internal error"
	}
	return c.JSON(statusOf(code), NewErrorResponse(string(code), msg))
}
