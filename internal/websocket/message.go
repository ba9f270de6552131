package websocket

import (
	"encoding/json"
	"time"

	"memo-server/internal/domain"
)

type MessageType string

const (
	TypeMemoCreated MessageType = "memo_created"
	TypeMemoUpdated MessageType = "memo_updated"
	TypeMemoDeleted MessageType = "memo_deleted"
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MemoEventPayload describes a changed memo. Title is empty for deletions.
type MemoEventPayload struct {
	MemoID    string    `json:"memo_id"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func NewMemoEventMessage(msgType MessageType, memo *domain.Memo) (*Message, error) {
	return NewMessage(msgType, &MemoEventPayload{
		MemoID:    memo.ID,
		Title:     domain.Title(memo.Content),
		UpdatedAt: memo.UpdatedAt,
	})
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
