package ai

import (
	"context"
	"errors"

	"orientachat/internal/models"
)

// FilePrompt is sent in place of user text when a turn only carries a document.
const FilePrompt = "Ecco un documento aggiuntivo. Usalo per rispondere."

var ErrAttachmentUnsupported = errors.New("provider does not accept file attachments")

// Turn is one user turn handed to a chat collaborator.
type Turn struct {
	Text       string
	Attachment *models.Attachment
}

// Prompt returns the text part of the turn, falling back to FilePrompt for file-only turns.
func (t Turn) Prompt() string {
	if t.Text == "" && !t.Attachment.Empty() {
		return FilePrompt
	}
	return t.Text
}

// Chunk is one streamed text fragment. A chunk with Err set is the last one.
type Chunk struct {
	Text string
	Err  error
}

// Chat is a stateful conversation with the collaborator. It carries its own
// running context, so each Stream call only hands over the new turn.
// The returned channel is closed after the final chunk.
type Chat interface {
	Stream(ctx context.Context, turn Turn) <-chan Chunk
}

// emit delivers a chunk unless ctx is done first.
func emit(ctx context.Context, out chan<- Chunk, chunk Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
