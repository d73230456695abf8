package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func authedContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, userID string) echo.Context {
	id := &auth.Identity{UserID: userID, Role: "patient"}
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	return e.NewContext(req, rec)
}

func TestHandler_Send(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"receiver_id":"u2","message":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")

	if err := h.Send(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var m Message
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if m.SenderID != "u1" {
		t.Errorf("sender must come from the session, got %s", m.SenderID)
	}
	if m.ConversationID != "u1_u2" {
		t.Errorf("expected conversation id u1_u2, got %s", m.ConversationID)
	}
}

func TestHandler_Send_SenderFromSessionNotPayload(t *testing.T) {
	h, _, e := newTestHandler()
	// A spoofed sender_id in the body is ignored.
	body := `{"receiver_id":"u2","message":"hi","sender_id":"u9"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")

	if err := h.Send(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m Message
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.SenderID != "u1" {
		t.Errorf("expected sender u1, got %s", m.SenderID)
	}
}

func TestHandler_Send_Validation(t *testing.T) {
	h, _, e := newTestHandler()
	cases := []struct {
		name string
		body string
		user string
		code int
	}{
		{"empty body", `{"receiver_id":"u2","message":""}`, "u1", http.StatusBadRequest},
		{"self message", `{"receiver_id":"u1","message":"hi"}`, "u1", http.StatusBadRequest},
		{"missing receiver", `{"message":"hi"}`, "u1", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := authedContext(e, req, rec, tc.user)

			err := h.Send(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if httpErr.Code != tc.code {
				t.Errorf("expected %d, got %d", tc.code, httpErr.Code)
			}
		})
	}
}

func TestHandler_ListConversations(t *testing.T) {
	h, svc, e := newTestHandler()
	if _, err := svc.Send(context.Background(), "u2", "u1", "hi"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")

	if err := h.ListConversations(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var convs []*Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &convs); err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].Peer.ID != "u2" || convs[0].UnreadCount != 1 {
		t.Errorf("unexpected conversations: %+v", convs)
	}
}

func TestHandler_ListConversations_EmptyIsArray(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")

	if err := h.ListConversations(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("expected empty array, got %s", got)
	}
}

func TestHandler_ListWithPartner(t *testing.T) {
	h, svc, e := newTestHandler()
	ctx := context.Background()
	if _, err := svc.Send(ctx, "u1", "u2", "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(ctx, "u2", "u1", "two"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")
	c.SetParamNames("partnerID")
	c.SetParamValues("u2")

	if err := h.ListWithPartner(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var msgs []*Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Body != "one" || msgs[1].Body != "two" {
		t.Errorf("expected chronological pair history, got %+v", msgs)
	}
}

func TestHandler_MarkRead(t *testing.T) {
	h, svc, e := newTestHandler()
	m, err := svc.Send(context.Background(), "u2", "u1", "hi")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")
	c.SetParamNames("messageID")
	c.SetParamValues(m.ID.String())

	if err := h.MarkRead(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var updated Message
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if !updated.Read {
		t.Error("expected read=true")
	}
}

func TestHandler_MarkRead_BadID(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")
	c.SetParamNames("messageID")
	c.SetParamValues("not-a-uuid")

	err := h.MarkRead(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Delete_Forbidden(t *testing.T) {
	h, svc, e := newTestHandler()
	m, err := svc.Send(context.Background(), "u1", "u2", "mine")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u2")
	c.SetParamNames("messageID")
	c.SetParamValues(m.ID.String())

	err = h.Delete(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-sender delete, got %v", err)
	}
}

func TestHandler_Delete_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")
	c.SetParamNames("messageID")
	c.SetParamValues(uuid.New().String())

	err := h.Delete(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Delete_AsSender(t *testing.T) {
	h, svc, e := newTestHandler()
	m, err := svc.Send(context.Background(), "u1", "u2", "mine")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "u1")
	c.SetParamNames("messageID")
	c.SetParamValues(m.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
