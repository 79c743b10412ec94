package constants

import (
	"log/slog"
	"os"
	"time"
)

const (
	Version = "2.0.0"

	DefaultPort      = "3000"
	AttemptTimeout   = 90 * time.Second
	RequestTimeout   = 5 * time.Minute
	ShutdownTimeout  = 10 * time.Second
	ProviderHTTPTime = 60 * time.Second

	NewsCacheDuration         = 24 * time.Hour
	GeminiAudioCacheDuration  = 7 * 24 * time.Hour
	ServiceAudioCacheDuration = 24 * time.Hour

	NewsCacheNamespace  = "news"
	AudioCacheNamespace = "audio"

	GeminiNewsModel   = "gemini-2.0-flash"
	GeminiSpeechModel = "gemini-2.5-flash-preview-tts"
	GeminiVoiceName   = "Kore"
	OpenAINewsModel   = "gpt-4.1"

	DefaultTTSServiceURL    = "http://127.0.0.1:5003"
	DefaultSpeakerID        = "p364"
	DefaultAccent           = "American"
	TTSMaxRetries           = 10
	TTSRequestsPerMinute    = 120
	ArticlesPerRegion       = 5
	InternationalRegionCode = "international"
)

// Logger is the process-wide default; services take their own logger and fall back to this one.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
