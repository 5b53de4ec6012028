package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"orientachat/internal/models"

	"github.com/oklog/ulid/v2"
)

// FeedbackRepository persists messages sent from the feedback modal.
type FeedbackRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewFeedbackRepository(db *sql.DB) (*FeedbackRepository, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &FeedbackRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Save stores the feedback text and returns the record with its id.
func (r *FeedbackRepository) Save(ctx context.Context, visitorID, text string) (*models.Feedback, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("feedback text is required")
	}
	fb := &models.Feedback{
		ID:        ulid.Make().String(),
		VisitorID: visitorID,
		Text:      text,
		CreatedAt: r.now(),
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO feedback (id, visitor_id, body, created_at) VALUES (?, ?, ?, ?)`,
		fb.ID, fb.VisitorID, fb.Text, fb.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	return fb, nil
}
