// Package friends contiene los DTOs del grafo de amistades.
package friends

import "time"

type RequestCreate struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

type AcceptRequest struct {
	RequesterID string `json:"requester_id"`
}

type DeclineRequest struct {
	RequesterID string `json:"requester_id"`
}

type FriendshipView struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	AddresseeID string     `json:"addressee_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
}

type FriendView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type ListResponse struct {
	Friends []FriendView `json:"friends"`
}

type PendingResponse struct {
	Requests []FriendshipView `json:"requests"`
}
