// Package friends expone los endpoints del grafo de amistades.
package friends

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/socialid/internal/http/dto/friends"
	httperrors "github.com/dropDatabas3/socialid/internal/http/errors"
	"github.com/dropDatabas3/socialid/internal/http/middlewares"
	svc "github.com/dropDatabas3/socialid/internal/http/services/friends"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Controller struct {
	Service *svc.Service
	Repo    core.Repository
}

// Request maneja POST /v1/friends/requests.
// El destinatario se indica por user_id o por username.
func (c *Controller) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)

	var req dto.RequestCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	addresseeID := req.UserID
	if addresseeID == "" && req.Username != "" {
		u, err := c.Repo.GetUserByUsername(ctx, req.Username)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("user not found"))
				return
			}
			httperrors.WriteError(w, err)
			return
		}
		addresseeID = u.ID
	}
	if addresseeID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("user_id or username required"))
		return
	}

	f, err := c.Service.Request(ctx, userID, addresseeID)
	if err != nil {
		writeFriendsError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, friendshipView(f))
}

// Accept maneja POST /v1/friends/accept.
func (c *Controller) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)

	var req dto.AcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.RequesterID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("requester_id required"))
		return
	}

	f, err := c.Service.Accept(ctx, req.RequesterID, userID)
	if err != nil {
		writeFriendsError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, friendshipView(f))
}

// Decline maneja POST /v1/friends/decline.
func (c *Controller) Decline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)

	var req dto.DeclineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.RequesterID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("requester_id required"))
		return
	}

	if err := c.Service.Decline(ctx, req.RequesterID, userID); err != nil {
		writeFriendsError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove maneja DELETE /v1/friends/{userID}.
func (c *Controller) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.GetUserID(ctx)

	otherID := chi.URLParam(r, "userID")
	if otherID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("user id required"))
		return
	}

	if err := c.Service.Remove(ctx, userID, otherID); err != nil {
		writeFriendsError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List maneja GET /v1/friends.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := c.Service.List(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	resp := dto.ListResponse{Friends: make([]dto.FriendView, 0, len(users))}
	for _, u := range users {
		resp.Friends = append(resp.Friends, dto.FriendView{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
		})
	}
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

// Pending maneja GET /v1/friends/requests.
func (c *Controller) Pending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqs, err := c.Service.Pending(ctx, middlewares.GetUserID(ctx))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	resp := dto.PendingResponse{Requests: make([]dto.FriendshipView, 0, len(reqs))}
	for i := range reqs {
		resp.Requests = append(resp.Requests, friendshipView(&reqs[i]))
	}
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

func friendshipView(f *core.Friendship) dto.FriendshipView {
	return dto.FriendshipView{
		ID:          f.ID,
		RequesterID: f.RequesterID,
		AddresseeID: f.AddresseeID,
		Status:      f.Status,
		CreatedAt:   f.CreatedAt,
		AcceptedAt:  f.AcceptedAt,
	}
}

func writeFriendsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrSelfFriendship):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("cannot befriend yourself"))
	case errors.Is(err, svc.ErrUserMissing):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("user not found"))
	case errors.Is(err, svc.ErrAlreadyRelated):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("relationship already exists"))
	case errors.Is(err, svc.ErrNoPending):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("no pending request"))
	case errors.Is(err, svc.ErrNotRelated):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("no such friendship"))
	default:
		httperrors.WriteError(w, err)
	}
}
