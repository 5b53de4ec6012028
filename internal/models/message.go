package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of a visitor's transcript. Timestamp is unix milliseconds.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	IsError   bool   `json:"isError,omitempty"`
}

// NewMessage stamps a message with the current time.
func NewMessage(id string, role Role, text string) Message {
	return Message{
		ID:        id,
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}
