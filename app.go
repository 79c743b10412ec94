package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	audio "news-digest-api/api/audio"
	config "news-digest-api/api/config"
	constants "news-digest-api/api/constants"
	kv "news-digest-api/api/kv"
	news "news-digest-api/api/news"
	provider "news-digest-api/api/provider"
	speech "news-digest-api/api/speech"
)

// app holds everything built from the configuration.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  kv.Store
	codec  *audio.Codec
	news   *news.Service
	speech *speech.Service

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, store: kv.NopStore{}}

	if cfg.KVURL == "" {
		log.Warn("KV_URL not set, caching disabled")
	} else {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		store, err := kv.Dial(dialCtx, cfg.KVURL, cfg.KVToken)
		cancel()
		if err != nil {
			log.Warn("Redis unavailable, caching disabled", "error", err)
		} else {
			log.Info("Connected to Redis")
			a.store = store
			a.closers = append(a.closers, func() { store.Close() })
		}
	}

	codec, err := audio.NewCodec(cfg.AudioCompression)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.codec = codec
	a.closers = append(a.closers, codec.Close)

	searchGemini := provider.NewGemini(provider.GeminiConfig{Search: true})
	speechGemini := provider.NewGemini(provider.GeminiConfig{})
	openAI := provider.NewOpenAI(provider.OpenAIConfig{BaseURL: cfg.OpenAIBaseURL})
	ttsService := provider.NewTTSService(nil, cfg.TTSRequestsPerMinute)

	a.news = news.NewService(news.Config{
		Store:          a.store,
		Gemini:         news.Source{Name: "GOOGLE_GENERATIVE_AI_API_KEYS", Generator: searchGemini, Credentials: cfg.GeminiPool},
		OpenAI:         news.Source{Name: "OPENAI_API_KEYS", Generator: openAI, Credentials: cfg.OpenAIPool},
		AttemptTimeout: cfg.AttemptTimeout,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	})

	a.speech, err = speech.NewService(speech.Config{
		Store:          a.store,
		Codec:          codec,
		Gemini:         speech.Source{Name: "GOOGLE_GENERATIVE_AI_API_KEYS", Synthesizer: speechGemini, Credentials: cfg.GeminiPool},
		Service:        speech.Source{Name: "TTS_SERVICE_URLS", Synthesizer: ttsService, Credentials: cfg.TTSServicePool},
		MaxRetries:     cfg.TTSMaxRetries,
		AttemptTimeout: cfg.AttemptTimeout,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadApp reads the configuration and builds the app, logging to w.
func loadApp(ctx context.Context, w io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := config.NewLogger(w, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)
	constants.Logger = log
	return newApp(ctx, cfg, log)
}
