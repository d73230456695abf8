package messaging

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/messages", auth.RequireRole("patient", "doctor", "student"))
	g.GET("/conversations", h.ListConversations)
	g.GET("/:partnerID", h.ListWithPartner)
	g.POST("/send", h.Send)
	g.PATCH("/:messageID/read", h.MarkRead)
	g.DELETE("/:messageID", h.Delete)
}

type sendRequest struct {
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message"`
}

func (h *Handler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	senderID := auth.UserIDFromContext(c.Request().Context())
	m, err := h.svc.Send(c.Request().Context(), senderID, req.ReceiverID, req.Message)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListConversations(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	convs, err := h.svc.Conversations(c.Request().Context(), userID)
	if err != nil {
		return mapError(err)
	}
	if convs == nil {
		convs = []*Conversation{}
	}
	return c.JSON(http.StatusOK, convs)
}

func (h *Handler) ListWithPartner(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	partnerID := c.Param("partnerID")
	pg := pagination.FromContext(c)
	msgs, err := h.svc.History(c.Request().Context(), userID, partnerID, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message id")
	}
	m, err := h.svc.MarkRead(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message id")
	}
	requesterID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.Delete(c.Request().Context(), id, requesterID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// mapError translates service errors into HTTP responses. Anything outside
// the known taxonomy is a storage-level failure and stays generic.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyBody), errors.Is(err, ErrSelfMessage), errors.Is(err, ErrInvalidUserID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrMessageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotSender):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "message store unavailable")
	}
}
