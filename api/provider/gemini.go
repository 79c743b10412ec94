package provider

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	constants "news-digest-api/api/constants"
	models "news-digest-api/api/models"
)

const audioModality = "AUDIO"

// GeminiConfig selects models and, for tests, an alternative endpoint.
type GeminiConfig struct {
	TextModel   string
	SpeechModel string
	BaseURL     string
	HTTPClient  *http.Client
	// Search enables Google Search grounding for text generation.
	Search bool
}

// Gemini talks to the Gemini API with one API key per call.
type Gemini struct {
	cfg GeminiConfig
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.TextModel == "" {
		cfg.TextModel = constants.GeminiNewsModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = constants.GeminiSpeechModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: constants.ProviderHTTPTime}
	}
	return &Gemini{cfg: cfg}
}

func (g *Gemini) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.cfg.HTTPClient,
	}
	if g.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

func (g *Gemini) GenerateText(ctx context.Context, apiKey, prompt string) (string, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	var config *genai.GenerateContentConfig
	if g.cfg.Search {
		config = &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, g.cfg.TextModel, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content with %s: %w", g.cfg.TextModel, err)
	}
	return resp.Text(), nil
}

func (g *Gemini) Synthesize(ctx context.Context, apiKey string, req SpeechPrompt) (models.Audio, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return models.Audio{}, err
	}

	voice := req.Voice
	if voice == "" {
		voice = constants.GeminiVoiceName
	}
	text := req.Text
	if req.Instruction != "" {
		text = req.Instruction + ": " + req.Text
	}

	resp, err := client.Models.GenerateContent(ctx, g.cfg.SpeechModel, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{audioModality},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	})
	if err != nil {
		return models.Audio{}, fmt.Errorf("failed to synthesize speech with %s: %w", g.cfg.SpeechModel, err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return models.Audio{Data: part.InlineData.Data, ContentType: part.InlineData.MIMEType}, nil
			}
		}
	}
	return models.Audio{}, nil
}
