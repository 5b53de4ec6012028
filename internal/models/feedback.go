package models

import "time"

// Feedback is a free-text note left by a visitor from the feedback modal.
type Feedback struct {
	ID        string    `json:"id"`
	VisitorID string    `json:"visitor_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
