package rest

import (
	"fmt"
	"time"
)

// Room types

// RoomType represents the type of a room.
type RoomType string

const (
	RoomTypeDirect RoomType = "direct"
	RoomTypeGroup  RoomType = "group"
)

// Room represents room metadata.
type Room struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Type          RoomType   `json:"room_type"`
	CreatedBy     int64      `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
}

// CreateRoomRequest is the request body for creating a room.
type CreateRoomRequest struct {
	Name           string   `json:"name"`
	Type           RoomType `json:"room_type,omitempty"` // defaults to "group" on the server
	ParticipantIDs []int64  `json:"participant_ids"`
}

// Participant is a room member.
type Participant struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
	IsOnline bool      `json:"is_online"`
}

// Message history types

// Message represents a single message in the history.
type Message struct {
	ID          int64     `json:"id"`
	RoomID      int64     `json:"room_id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	ReplyToID   *int64    `json:"reply_to_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessagesPage contains a page of messages with pagination info.
type MessagesPage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// ErrorResponse is the server's error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// APIError is returned for responses with status >= 400.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Detail)
}
