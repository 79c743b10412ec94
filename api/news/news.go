// Package news builds learner news digests from generative models, one region at a time,
// behind the shared read-through cache.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cachekey "news-digest-api/api/cachekey"
	config "news-digest-api/api/config"
	constants "news-digest-api/api/constants"
	failover "news-digest-api/api/failover"
	fetch "news-digest-api/api/fetch"
	kv "news-digest-api/api/kv"
	models "news-digest-api/api/models"
	normalize "news-digest-api/api/normalize"
	pool "news-digest-api/api/pool"
	provider "news-digest-api/api/provider"
)

const (
	VariantGemini  = "gemini"
	VariantOpenAI  = "openai"
	VariantEnglish = "english"
)

// Source is a text generator together with the credential pool it is called with.
type Source struct {
	Name        string
	Generator   provider.TextGenerator
	Credentials func() ([]string, error)
}

type Config struct {
	Store          kv.Store
	Gemini         Source
	OpenAI         Source
	Shuffler       *pool.Shuffler
	AttemptTimeout time.Duration
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Service struct {
	sources        map[string]Source
	shuffler       *pool.Shuffler
	attemptTimeout time.Duration
	log            *slog.Logger

	translated map[string]*fetch.Cached[models.Digest[models.Article]]
	english    *fetch.Cached[models.Digest[models.EnglishArticle]]
}

func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = constants.Logger
	}
	if cfg.Shuffler == nil {
		cfg.Shuffler = pool.New()
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = constants.AttemptTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = constants.RequestTimeout
	}

	s := &Service{
		sources: map[string]Source{
			VariantGemini:  cfg.Gemini,
			VariantOpenAI:  cfg.OpenAI,
			VariantEnglish: cfg.Gemini,
		},
		shuffler:       cfg.Shuffler,
		attemptTimeout: cfg.AttemptTimeout,
		log:            log,
		translated:     make(map[string]*fetch.Cached[models.Digest[models.Article]]),
	}

	for _, variant := range []string{VariantGemini, VariantOpenAI} {
		s.translated[variant] = fetch.New(fetch.Options[models.Digest[models.Article]]{
			Name:      "news-" + variant,
			Store:     cfg.Store,
			TTL:       constants.NewsCacheDuration,
			Cacheable: cacheable[models.Article],
			Timeout:   cfg.RequestTimeout,
			Logger:    log,
		})
	}
	s.english = fetch.New(fetch.Options[models.Digest[models.EnglishArticle]]{
		Name:      "news-" + VariantEnglish,
		Store:     cfg.Store,
		TTL:       constants.NewsCacheDuration,
		Cacheable: cacheable[models.EnglishArticle],
		Timeout:   cfg.RequestTimeout,
		Logger:    log,
	})
	return s
}

// Only complete, non-empty digests are cached: partial results and empty lists are
// served once and fetched again next time.
func cacheable[A any](d models.Digest[A]) bool {
	return d.Complete() && len(d.Articles) > 0
}

// Translated returns articles for every requested region with sentences translated into
// req.Language, generated by the named variant (VariantGemini or VariantOpenAI).
func (s *Service) Translated(ctx context.Context, variant string, req models.NewsRequest) (models.Digest[models.Article], fetch.Outcome, error) {
	cache, ok := s.translated[variant]
	if !ok {
		return models.Digest[models.Article]{}, "", fmt.Errorf("%w: unknown news provider %q", models.ErrInvalidRequest, variant)
	}
	if strings.TrimSpace(req.Language) == "" {
		return models.Digest[models.Article]{}, "", fmt.Errorf("%w: language is required", models.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return models.Digest[models.Article]{}, "", err
	}

	src := s.sources[variant]
	key := cachekey.News(variant, req)
	return cache.Get(ctx, key, req.SkipCache, func(ctx context.Context) (models.Digest[models.Article], error) {
		return collect(ctx, s, src, req.Regions, func(region string) (failover.Work[[]models.Article], error) {
			prompt, err := TranslatedPrompt(region, req.Language, req.Level, req.AsOf)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, cred string) ([]models.Article, error) {
				text, err := src.Generator.GenerateText(ctx, cred, prompt)
				if err != nil {
					return nil, err
				}
				return normalize.Articles(text, region, s.log)
			}, nil
		})
	})
}

// English returns English-only articles for the requested regions.
func (s *Service) English(ctx context.Context, req models.NewsRequest) (models.Digest[models.EnglishArticle], fetch.Outcome, error) {
	req.Language = VariantEnglish
	if err := req.Validate(); err != nil {
		return models.Digest[models.EnglishArticle]{}, "", err
	}

	src := s.sources[VariantEnglish]
	key := cachekey.News(VariantEnglish, req)
	return s.english.Get(ctx, key, req.SkipCache, func(ctx context.Context) (models.Digest[models.EnglishArticle], error) {
		return collect(ctx, s, src, req.Regions, func(region string) (failover.Work[[]models.EnglishArticle], error) {
			prompt, err := EnglishPrompt(region, req.Level, req.AsOf)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, cred string) ([]models.EnglishArticle, error) {
				text, err := src.Generator.GenerateText(ctx, cred, prompt)
				if err != nil {
					return nil, err
				}
				return normalize.EnglishArticles(text, s.log)
			}, nil
		})
	})
}

// collect runs one failover pass per region, each over a fresh permutation of the pool.
// A region that exhausts its pool is logged and reported as missing; the request only
// fails when no region succeeds or the configuration is unusable.
func collect[A any](ctx context.Context, s *Service, src Source, regions []string, work func(region string) (failover.Work[[]A], error)) (models.Digest[A], error) {
	var digest models.Digest[A]
	if src.Generator == nil || src.Credentials == nil {
		return digest, &config.ConfigurationError{Setting: src.Name, Reason: "provider not configured"}
	}

	var lastErr error
	for _, region := range regions {
		creds, err := src.Credentials()
		if err != nil {
			return digest, err
		}
		w, err := work(region)
		if err != nil {
			return digest, err
		}

		opts := failover.Options{Name: src.Name, AttemptTimeout: s.attemptTimeout, Logger: s.log.With("region", region)}
		articles, err := failover.Attempt(ctx, opts, s.shuffler.Shuffle(creds), w)
		if err != nil {
			var cfgErr *config.ConfigurationError
			if errors.As(err, &cfgErr) || ctx.Err() != nil {
				return digest, err
			}
			s.log.Warn("Failed to fetch news for region", "region", region, "pool", src.Name, "error", err)
			digest.MissingRegions = append(digest.MissingRegions, region)
			lastErr = err
			continue
		}

		s.log.Info("Fetched news for region", "region", region, "articles", len(articles))
		digest.Articles = append(digest.Articles, articles...)
	}

	if len(digest.MissingRegions) == len(regions) {
		return models.Digest[A]{}, lastErr
	}
	if digest.Articles == nil {
		digest.Articles = []A{}
	}
	return digest, nil
}
