// Package speech turns sentences into cached, playable audio.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	audio "news-digest-api/api/audio"
	cachekey "news-digest-api/api/cachekey"
	config "news-digest-api/api/config"
	constants "news-digest-api/api/constants"
	failover "news-digest-api/api/failover"
	fetch "news-digest-api/api/fetch"
	kv "news-digest-api/api/kv"
	models "news-digest-api/api/models"
	pool "news-digest-api/api/pool"
	provider "news-digest-api/api/provider"
)

const (
	VariantGemini  = "gemini"
	VariantService = "service"
)

var accentInstructions = map[string]string{
	"American":   "Read the following text in an American accent",
	"British":    "Read the following text in a British accent",
	"Australian": "Read the following text in an Australian accent",
	"Indian":     "Read the following text in an extremely strong Indian accent with an extremely fast tempo",
}

// Accent maps a requested accent onto a supported one, case-insensitively.
// Unknown and empty accents read as American.
func Accent(accent string) string {
	accent = strings.TrimSpace(accent)
	for name := range accentInstructions {
		if strings.EqualFold(name, accent) {
			return name
		}
	}
	return constants.DefaultAccent
}

// Source is a synthesizer with its credential pool.
type Source struct {
	Name        string
	Synthesizer provider.SpeechSynthesizer
	Credentials func() ([]string, error)
}

type Config struct {
	Store kv.Store
	// Codec defaults to an uncompressed one.
	Codec          *audio.Codec
	Gemini         Source
	Service        Source
	Shuffler       *pool.Shuffler
	MaxRetries     int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Service struct {
	cfg     Config
	log     *slog.Logger
	gemini  *fetch.Cached[models.Audio]
	service *fetch.Cached[models.Audio]
}

func NewService(cfg Config) (*Service, error) {
	log := cfg.Logger
	if log == nil {
		log = constants.Logger
	}
	if cfg.Codec == nil {
		codec, err := audio.NewCodec(false)
		if err != nil {
			return nil, err
		}
		cfg.Codec = codec
	}
	if cfg.Shuffler == nil {
		cfg.Shuffler = pool.New()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = constants.TTSMaxRetries
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = constants.AttemptTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = constants.RequestTimeout
	}

	newCache := func(variant string, ttl time.Duration) *fetch.Cached[models.Audio] {
		return fetch.New(fetch.Options[models.Audio]{
			Name:    "audio-" + variant,
			Store:   cfg.Store,
			TTL:     ttl,
			Codec:   cfg.Codec,
			Timeout: cfg.RequestTimeout,
			Logger:  log,
		})
	}

	return &Service{
		cfg:     cfg,
		log:     log,
		gemini:  newCache(VariantGemini, constants.GeminiAudioCacheDuration),
		service: newCache(VariantService, constants.ServiceAudioCacheDuration),
	}, nil
}

// Gemini reads req.Text in the requested accent. Whole passes over the key pool are
// repeated while the model answers without audio, up to MaxRetries.
func (s *Service) Gemini(ctx context.Context, req models.SpeechRequest) (models.Audio, fetch.Outcome, error) {
	if err := req.Validate(constants.DefaultAccent); err != nil {
		return models.Audio{}, "", err
	}
	req.Voice = Accent(req.Voice)

	src := s.cfg.Gemini
	prompt := provider.SpeechPrompt{
		Text:        req.Text,
		Instruction: accentInstructions[req.Voice],
		Voice:       constants.GeminiVoiceName,
	}

	key := cachekey.Audio(VariantGemini, req)
	return s.gemini.Get(ctx, key, false, func(ctx context.Context) (models.Audio, error) {
		if err := checkSource(src); err != nil {
			return models.Audio{}, err
		}

		pass := func(ctx context.Context) (models.Audio, error) {
			creds, err := src.Credentials()
			if err != nil {
				return models.Audio{}, err
			}
			opts := failover.Options{Name: src.Name, AttemptTimeout: s.cfg.AttemptTimeout, Logger: s.log}
			return failover.Attempt(ctx, opts, s.cfg.Shuffler.Shuffle(creds), func(ctx context.Context, cred string) (models.Audio, error) {
				return src.Synthesizer.Synthesize(ctx, cred, prompt)
			})
		}

		a, err := failover.Retry(ctx, failover.RetryOptions{
			Name:        src.Name,
			MaxAttempts: s.cfg.MaxRetries,
			Delay:       s.cfg.RetryDelay,
			What:        "audio",
			Logger:      s.log,
		}, pass, isEmpty)
		if err != nil {
			return models.Audio{}, err
		}
		return models.Audio{Data: audio.EnsureContainer(a.Data), ContentType: audio.ContentTypeWAV}, nil
	})
}

// External reads req.Text with a speaker of the self-hosted TTS service. Each configured
// server is tried once; an empty answer moves on to the next one.
func (s *Service) External(ctx context.Context, req models.SpeechRequest) (models.Audio, fetch.Outcome, error) {
	if err := req.Validate(constants.DefaultSpeakerID); err != nil {
		return models.Audio{}, "", err
	}
	req.Voice = strings.TrimSpace(req.Voice)
	// The speaker id is a cache key segment followed by free text.
	if strings.Contains(req.Voice, ":") {
		return models.Audio{}, "", fmt.Errorf("%w: speaker_id must not contain %q", models.ErrInvalidRequest, ":")
	}

	src := s.cfg.Service
	prompt := provider.SpeechPrompt{Text: req.Text, Voice: req.Voice}

	key := cachekey.Audio(VariantService, req)
	return s.service.Get(ctx, key, false, func(ctx context.Context) (models.Audio, error) {
		if err := checkSource(src); err != nil {
			return models.Audio{}, err
		}
		urls, err := src.Credentials()
		if err != nil {
			return models.Audio{}, err
		}

		opts := failover.Options{Name: src.Name, AttemptTimeout: s.cfg.AttemptTimeout, Logger: s.log}
		return failover.Attempt(ctx, opts, s.cfg.Shuffler.Shuffle(urls), func(ctx context.Context, baseURL string) (models.Audio, error) {
			a, err := src.Synthesizer.Synthesize(ctx, baseURL, prompt)
			if err != nil {
				return models.Audio{}, err
			}
			if isEmpty(a) {
				return models.Audio{}, &failover.EmptyResultError{What: "audio"}
			}
			if a.ContentType == "" {
				a.ContentType = audio.ContentTypeWAV
			}
			return a, nil
		})
	})
}

func isEmpty(a models.Audio) bool {
	return len(a.Data) == 0
}

func checkSource(src Source) error {
	if src.Synthesizer == nil || src.Credentials == nil {
		return &config.ConfigurationError{Setting: src.Name, Reason: "provider not configured"}
	}
	return nil
}
