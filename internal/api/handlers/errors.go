package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

// UserIDHeader carries the id of the signed-in user. Requests without it are
// treated as anonymous (user 0).
const UserIDHeader = "X-User-ID"

type ErrorResponse struct {
	Error   string                `json:"error"`
	Code    domain.ValidationCode `json:"code,omitempty"`
	Field   string                `json:"field,omitempty"`
	Cascade *domain.CascadeResult `json:"cascade,omitempty"`
}

func currentUser(c echo.Context) int64 {
	id, err := strconv.ParseInt(c.Request().Header.Get(UserIDHeader), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func invalidID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id"})
}

func loginRequired(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Login required"})
}

// respondError maps service errors onto status codes. Storage details are
// logged, never returned.
func respondError(c echo.Context, log logger.Logger, err error) error {
	var (
		validationErr *domain.ValidationError
		forbiddenErr  *domain.ForbiddenError
		storageErr    *domain.StorageError
	)
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: validationErr.Message,
			Code:  validationErr.Code,
			Field: validationErr.Field,
		})
	case errors.As(err, &forbiddenErr):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "Access denied"})
	case errors.As(err, &storageErr):
		log.Error("Storage failure", "op", storageErr.Op, "error", storageErr.Err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Storage failure",
			Cascade: storageErr.Cascade,
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		log.Error("Unexpected error", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
	}
}
