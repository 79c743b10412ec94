package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	constants "news-digest-api/api/constants"
)

// OpenAIConfig selects the chat model and an optional compatible endpoint.
type OpenAIConfig struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAI generates text through the chat completions API.
type OpenAI struct {
	cfg OpenAIConfig
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = constants.OpenAINewsModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: constants.ProviderHTTPTime}
	}
	return &OpenAI{cfg: cfg}
}

func (o *OpenAI) GenerateText(ctx context.Context, apiKey, prompt string) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.cfg.HTTPClient),
		// Failover moves on to the next key instead.
		option.WithMaxRetries(0),
	}
	if o.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(o.cfg.Model),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with %s: %w", o.cfg.Model, err)
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}
