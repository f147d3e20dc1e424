// Package messages expone los endpoints de mensajería directa.
package messages

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/socialid/internal/http/dto/messages"
	httperrors "github.com/dropDatabas3/socialid/internal/http/errors"
	"github.com/dropDatabas3/socialid/internal/http/middlewares"
	svc "github.com/dropDatabas3/socialid/internal/http/services/messages"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Controller struct {
	Service *svc.Service
}

// Send maneja POST /v1/messages.
func (c *Controller) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)

	var req dto.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.To == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("to required"))
		return
	}

	m, err := c.Service.Send(ctx, userID, req.To, req.Body)
	if err != nil {
		writeMessagesError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, messageView(m))
}

// Conversation maneja GET /v1/messages/{userID}.
// Query params: limit (default 50), before (RFC3339).
func (c *Controller) Conversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)
	otherID := chi.URLParam(r, "userID")

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	var before time.Time
	if s := r.URL.Query().Get("before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid before timestamp"))
			return
		}
		before = t
	}

	msgs, err := c.Service.Conversation(ctx, userID, otherID, limit, before)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	resp := dto.ConversationResponse{Messages: make([]dto.MessageView, 0, len(msgs))}
	for i := range msgs {
		resp.Messages = append(resp.Messages, messageView(&msgs[i]))
	}
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

// MarkRead maneja POST /v1/messages/{userID}/read.
func (c *Controller) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := c.Service.MarkRead(ctx, middlewares.GetUserID(ctx), chi.URLParam(r, "userID"))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.MarkReadResponse{Updated: n})
}

func messageView(m *core.Message) dto.MessageView {
	return dto.MessageView{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		ReadAt:     m.ReadAt,
	}
}

func writeMessagesError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrNotFriends):
		httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("users are not friends"))
	case errors.Is(err, svc.ErrEmptyBody), errors.Is(err, svc.ErrBodyTooBig):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail(err.Error()))
	default:
		httperrors.WriteError(w, err)
	}
}
