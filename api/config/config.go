package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	charmlog "github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"

	constants "news-digest-api/api/constants"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	GeminiKeys    string `env:"GOOGLE_GENERATIVE_AI_API_KEYS"`
	OpenAIKeys    string `env:"OPENAI_API_KEYS"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	TTSServices   string `env:"TTS_SERVICE_URLS"`

	KVURL   string `env:"KV_URL"`
	KVToken string `env:"KV_REST_API_TOKEN"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	AttemptTimeout       time.Duration `env:"ATTEMPT_TIMEOUT" envDefault:"90s"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5m"`
	TTSMaxRetries        int           `env:"TTS_MAX_RETRIES" envDefault:"10"`
	TTSRequestsPerMinute int           `env:"TTS_REQUESTS_PER_MINUTE" envDefault:"120"`
	AudioCompression     bool          `env:"AUDIO_COMPRESSION" envDefault:"false"`
}

// Load reads the optional .env files and then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.TTSMaxRetries < 1 {
		cfg.TTSMaxRetries = constants.TTSMaxRetries
	}
	return &cfg, nil
}

// ConfigurationError means a credential pool is missing or malformed. It is never retried.
type ConfigurationError struct {
	Setting string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Setting, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ParseCredentials decodes a JSON array of non-empty strings.
func ParseCredentials(setting, raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ConfigurationError{Setting: setting, Reason: "not set"}
	}

	var creds []string
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, &ConfigurationError{Setting: setting, Reason: "not a JSON array of strings", Err: err}
	}

	out := creds[:0]
	for _, c := range creds {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, &ConfigurationError{Setting: setting, Reason: "no credentials configured"}
	}
	return out, nil
}

// GeminiPool parses GOOGLE_GENERATIVE_AI_API_KEYS.
func (c *Config) GeminiPool() ([]string, error) {
	return ParseCredentials("GOOGLE_GENERATIVE_AI_API_KEYS", c.GeminiKeys)
}

// OpenAIPool parses OPENAI_API_KEYS, falling back to the single OPENAI_API_KEY.
func (c *Config) OpenAIPool() ([]string, error) {
	if strings.TrimSpace(c.OpenAIKeys) == "" && strings.TrimSpace(c.OpenAIKey) != "" {
		return []string{strings.TrimSpace(c.OpenAIKey)}, nil
	}
	return ParseCredentials("OPENAI_API_KEYS", c.OpenAIKeys)
}

// TTSServicePool parses TTS_SERVICE_URLS, defaulting to the local service.
func (c *Config) TTSServicePool() ([]string, error) {
	if strings.TrimSpace(c.TTSServices) == "" {
		return []string{constants.DefaultTTSServiceURL}, nil
	}
	return ParseCredentials("TTS_SERVICE_URLS", c.TTSServices)
}

// NewLogger builds the process logger: JSON like the rest of the service, or charm text for terminals.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	if strings.EqualFold(format, "text") {
		h := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmlog.Level(lvl),
		})
		return slog.New(h)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
