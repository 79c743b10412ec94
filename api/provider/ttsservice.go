package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	constants "news-digest-api/api/constants"
	models "news-digest-api/api/models"
)

const (
	ttsServicePath  = "/api/tts"
	maxErrorBodyLen = 512
)

// TTSService calls a self-hosted TTS server. The credential is the server's base URL;
// each server gets its own rate limiter.
type TTSService struct {
	httpClient        *http.Client
	requestsPerMinute int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewTTSService(httpClient *http.Client, requestsPerMinute int) *TTSService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ProviderHTTPTime}
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = constants.TTSRequestsPerMinute
	}
	return &TTSService{
		httpClient:        httpClient,
		requestsPerMinute: requestsPerMinute,
		limiters:          make(map[string]*rate.Limiter),
	}
}

func (s *TTSService) limiter(baseURL string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[baseURL]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.requestsPerMinute)), 1)
		s.limiters[baseURL] = l
	}
	return l
}

func (s *TTSService) Synthesize(ctx context.Context, baseURL string, req SpeechPrompt) (models.Audio, error) {
	if req.Text == "" {
		return models.Audio{}, errors.New("text cannot be empty")
	}

	if err := s.limiter(baseURL).Wait(ctx); err != nil {
		return models.Audio{}, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	q := url.Values{}
	q.Set("text", req.Text)
	q.Set("speaker_id", req.Voice)
	endpoint := strings.TrimRight(baseURL, "/") + ttsServicePath + "?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return models.Audio{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return models.Audio{}, fmt.Errorf("failed to send request to TTS service at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return models.Audio{}, fmt.Errorf("TTS service returned non-OK status: %s, body: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Audio{}, fmt.Errorf("failed to read audio data: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "audio/wav"
	}
	return models.Audio{Data: data, ContentType: contentType}, nil
}
