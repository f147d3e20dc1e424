// Package messages contiene los DTOs de mensajería.
package messages

import "time"

type SendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type MessageView struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

type ConversationResponse struct {
	Messages []MessageView `json:"messages"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
