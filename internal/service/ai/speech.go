package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

var ErrNoAudio = errors.New("speech response carried no audio")

// GeminiSynthesizer turns text into raw 24 kHz mono PCM16 audio through the Gemini TTS model.
type GeminiSynthesizer struct {
	client *genai.Client
	model  string
	voice  string
}

func NewGeminiSynthesizer(client *genai.Client, model, voice string) (*GeminiSynthesizer, error) {
	if client == nil {
		return nil, errors.New("gemini client required")
	}
	if model == "" {
		model = "gemini-2.5-flash-preview-tts"
	}
	if voice == "" {
		voice = "Kore"
	}
	return &GeminiSynthesizer{client: client, model: model, voice: voice}, nil
}

func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(text), s.config())
	if err != nil {
		return nil, fmt.Errorf("generate speech: %w", err)
	}
	return audioFromResponse(resp)
}

func (s *GeminiSynthesizer) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	}
}

func audioFromResponse(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoAudio
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	return nil, ErrNoAudio
}
