// Package provider holds the remote generators: Gemini and OpenAI for text, Gemini and an
// external HTTP service for speech. Every call takes the credential to use, so the caller
// decides the failover order.
package provider

import (
	"context"

	models "news-digest-api/api/models"
)

// TextGenerator returns the free-form text a model produced for prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, credential, prompt string) (string, error)
}

// SpeechSynthesizer returns audio for text. Empty audio with a nil error is a valid,
// if useless, answer.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, credential string, req SpeechPrompt) (models.Audio, error)
}

// SpeechPrompt is what a synthesizer reads: the text, an optional reading instruction,
// and a provider specific voice.
type SpeechPrompt struct {
	Text        string
	Instruction string
	Voice       string
}
