package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoChatFactory opens chats over any eino chat model. Used for the
// non-gemini providers, which receive text turns only.
type EinoChatFactory struct {
	model model.BaseChatModel
}

func NewEinoChatFactory(chatModel model.BaseChatModel) (*EinoChatFactory, error) {
	if chatModel == nil {
		return nil, errors.New("chat model required")
	}
	return &EinoChatFactory{model: chatModel}, nil
}

func (f *EinoChatFactory) NewChat(context.Context) (Chat, error) {
	return &einoChat{model: f.model}, nil
}

type einoChat struct {
	model model.BaseChatModel

	mu      sync.Mutex
	history []*schema.Message
}

func (c *einoChat) Stream(ctx context.Context, turn Turn) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		if !turn.Attachment.Empty() {
			emit(ctx, out, Chunk{Err: ErrAttachmentUnsupported})
			return
		}
		userMsg := schema.UserMessage(turn.Prompt())
		reader, err := c.model.Stream(ctx, c.convertMessages(userMsg))
		if err != nil {
			emit(ctx, out, Chunk{Err: fmt.Errorf("open ai stream: %w", err)})
			return
		}
		defer reader.Close()

		var full strings.Builder
		for {
			msg, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				emit(ctx, out, Chunk{Err: fmt.Errorf("read ai stream: %w", err)})
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			full.WriteString(msg.Content)
			if !emit(ctx, out, Chunk{Text: msg.Content}) {
				return
			}
		}
		c.appendHistory(userMsg, schema.AssistantMessage(full.String(), nil))
	}()
	return out
}

// convertMessages builds system + history + the pending user turn.
func (c *einoChat) convertMessages(pending *schema.Message) []*schema.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]*schema.Message, 0, len(c.history)+2)
	messages = append(messages, schema.SystemMessage(SystemInstruction))
	messages = append(messages, c.history...)
	return append(messages, pending)
}

// appendHistory records a completed turn; failed turns are never recorded.
func (c *einoChat) appendHistory(msgs ...*schema.Message) {
	c.mu.Lock()
	c.history = append(c.history, msgs...)
	c.mu.Unlock()
}
