package ai

import (
	"context"
	"fmt"

	"orientachat/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// ChatFactory creates a fresh collaborator chat with no carried-over context.
type ChatFactory interface {
	NewChat(ctx context.Context) (Chat, error)
}

// NewChatFactory picks the chat collaborator named by basic_config.chat_provider.
// The gemini client is reused when the gemini provider is selected.
func NewChatFactory(ctx context.Context, cfg *config.Config, geminiClient *genai.Client) (ChatFactory, error) {
	provider := cfg.BasicConfig.ChatProvider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "gemini":
		factory, err := NewGeminiChatFactory(geminiClient, provCfg.Model)
		if err != nil {
			return nil, err
		}
		return factory, nil
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	factory, err := NewEinoChatFactory(chatModel)
	if err != nil {
		return nil, err
	}
	return factory, nil
}
