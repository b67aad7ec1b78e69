package crmchat

import (
	"encoding/json"
	"time"
)

// MessageType is the discriminator of a WireMessage.
type MessageType string

const (
	// Sent by clients, echoed back by the server to everyone in the room.
	TypeChatMessage MessageType = "message"
	TypeTyping      MessageType = "typing"
	TypeJoinRoom    MessageType = "join_room"
	TypeLeaveRoom   MessageType = "leave_room"

	// Sent by the server only.
	TypeUserJoined MessageType = "user_joined"
	TypeUserLeft   MessageType = "user_left"
	TypeError      MessageType = "error"
)

// Content kinds carried in WireMessage.MessageType.
const (
	ContentText   = "text"
	ContentFile   = "file"
	ContentSystem = "system"
)

// WireMessage is the JSON envelope exchanged over the room socket.
// Outbound frames only use the first six fields; the rest are filled by the
// server on inbound frames.
type WireMessage struct {
	Type        MessageType `json:"type"`
	Content     string      `json:"content,omitempty"`
	RoomID      int64       `json:"room_id,omitempty"`
	IsTyping    *bool       `json:"is_typing,omitempty"`
	MessageType string      `json:"message_type,omitempty"`
	ReplyToID   *int64      `json:"reply_to_id,omitempty"`

	ID        int64      `json:"id,omitempty"`
	UserID    int64      `json:"user_id,omitempty"`
	Username  string     `json:"username,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Code      string     `json:"code,omitempty"`
}

// Typing reports the is_typing flag, false when absent.
func (m WireMessage) Typing() bool {
	return m.IsTyping != nil && *m.IsTyping
}

// ChatOption customizes a chat message built by NewChatMessage.
type ChatOption func(*WireMessage)

// WithMessageType sets the content kind (text, file, system).
func WithMessageType(kind string) ChatOption {
	return func(m *WireMessage) { m.MessageType = kind }
}

// WithReplyTo marks the message as a reply to another message id.
func WithReplyTo(id int64) ChatOption {
	return func(m *WireMessage) { m.ReplyToID = &id }
}

// NewChatMessage builds a chat message frame. The content kind defaults to text.
func NewChatMessage(roomID int64, content string, opts ...ChatOption) WireMessage {
	m := WireMessage{
		Type:        TypeChatMessage,
		Content:     content,
		RoomID:      roomID,
		MessageType: ContentText,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// NewTyping builds a typing indicator frame.
func NewTyping(roomID int64, typing bool) WireMessage {
	return WireMessage{Type: TypeTyping, RoomID: roomID, IsTyping: &typing}
}

// NewJoinRoom builds a join frame.
func NewJoinRoom(roomID int64) WireMessage {
	return WireMessage{Type: TypeJoinRoom, RoomID: roomID}
}

// NewLeaveRoom builds a leave frame.
func NewLeaveRoom(roomID int64) WireMessage {
	return WireMessage{Type: TypeLeaveRoom, RoomID: roomID}
}

// DecodeWireMessage parses an inbound frame. Frames without a type are
// rejected.
func DecodeWireMessage(data []byte) (WireMessage, error) {
	var m WireMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return WireMessage{}, WrapError(ErrorSerialization, "malformed frame", err)
	}
	if m.Type == "" {
		return WireMessage{}, NewError(ErrorSerialization, "frame has no type")
	}
	return m, nil
}
