package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// NewGeminiClient builds a Gemini API client shared by chat and speech.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

// GeminiChatFactory opens native Gemini chat sessions.
type GeminiChatFactory struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiChatFactory(client *genai.Client, model string) (*GeminiChatFactory, error) {
	if client == nil {
		return nil, errors.New("gemini client required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiChatFactory{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		},
	}, nil
}

// NewChat starts a chat with no prior history.
func (f *GeminiChatFactory) NewChat(ctx context.Context) (Chat, error) {
	chat, err := f.client.Chats.Create(ctx, f.model, f.config, nil)
	if err != nil {
		return nil, fmt.Errorf("create gemini chat: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) Stream(ctx context.Context, turn Turn) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for resp, err := range c.chat.SendStream(ctx, geminiParts(turn)...) {
			if err != nil {
				emit(ctx, out, Chunk{Err: fmt.Errorf("gemini stream: %w", err)})
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !emit(ctx, out, Chunk{Text: text}) {
				return
			}
		}
	}()
	return out
}

// geminiParts puts the inline document first, followed by the text prompt.
func geminiParts(turn Turn) []*genai.Part {
	parts := make([]*genai.Part, 0, 2)
	if !turn.Attachment.Empty() {
		mimeType := turn.Attachment.MIMEType
		if mimeType == "" {
			mimeType = "application/pdf"
		}
		parts = append(parts, genai.NewPartFromBytes(turn.Attachment.Data, mimeType))
	}
	return append(parts, genai.NewPartFromText(turn.Prompt()))
}
