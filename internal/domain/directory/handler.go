package directory

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/profiles", auth.RequireRole("patient", "doctor", "student"))
	g.GET("/:userID", h.GetProfile)
}

// GetProfile returns the public profile shown next to a peer's messages.
func (h *Handler) GetProfile(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("userID"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	p, err := h.svc.GetProfile(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "profile directory unavailable")
	}
	return c.JSON(http.StatusOK, p)
}
