package handler_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-digest-api/api/audio"
	config "news-digest-api/api/config"
	"news-digest-api/api/failover"
	"news-digest-api/api/fetch"
	"news-digest-api/api/handler"
	kv "news-digest-api/api/kv"
	models "news-digest-api/api/models"
	"news-digest-api/api/news"
	"news-digest-api/api/normalize"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeNews struct {
	variant string
	req     models.NewsRequest
	digest  models.Digest[models.Article]
	english models.Digest[models.EnglishArticle]
	err     error
}

func (f *fakeNews) Translated(_ context.Context, variant string, req models.NewsRequest) (models.Digest[models.Article], fetch.Outcome, error) {
	f.variant, f.req = variant, req
	return f.digest, fetch.Miss, f.err
}

func (f *fakeNews) English(_ context.Context, req models.NewsRequest) (models.Digest[models.EnglishArticle], fetch.Outcome, error) {
	f.req = req
	return f.english, fetch.Hit, f.err
}

type fakeSpeech struct {
	req   models.SpeechRequest
	audio models.Audio
	err   error
}

func (f *fakeSpeech) Gemini(_ context.Context, req models.SpeechRequest) (models.Audio, fetch.Outcome, error) {
	f.req = req
	return f.audio, fetch.Hit, f.err
}

func (f *fakeSpeech) External(_ context.Context, req models.SpeechRequest) (models.Audio, fetch.Outcome, error) {
	f.req = req
	return f.audio, fetch.Miss, f.err
}

type connectedStore struct{ kv.NopStore }

func (connectedStore) Connected() bool { return true }

func serve(t *testing.T, n handler.NewsService, s handler.SpeechService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router := handler.New(n, s, connectedStore{}, quiet).Router()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeNews{}, &fakeSpeech{}, httptest.NewRequest(http.MethodGet, "/api", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["cache_status"])
	assert.Contains(t, body["endpoints"], "/api/tts/gemini")
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeNews{}, &fakeSpeech{}, httptest.NewRequest(http.MethodOptions, "/api/news", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/request-headers", nil)
	req.Header.Set("Accept-Language", "fr-FR")
	rec := serve(t, &fakeNews{}, &fakeSpeech{}, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Headers map[string]string `json:"headers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fr-FR", body.Headers["Accept-Language"])
}

func TestTranslatedNews(t *testing.T) {
	t.Parallel()

	fn := &fakeNews{digest: models.Digest[models.Article]{
		Articles:       []models.Article{{Title: "T", Region: "germany", Sentences: []models.Sentence{{English: "E", Translated: "F"}}}},
		MissingRegions: []string{"japan"},
	}}
	body := `{"language": "fr", "regions": ["germany", "japan"], "level": "advanced", "date": "2024-06-01", "skipCache": true}`
	rec := serve(t, fn, &fakeSpeech{}, httptest.NewRequest(http.MethodPost, "/api/news/openai", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "openai", fn.variant)
	assert.Equal(t, "fr", fn.req.Language)
	assert.Equal(t, []string{"germany", "japan"}, fn.req.Regions)
	assert.Equal(t, models.LevelAdvanced, fn.req.Level)
	assert.True(t, fn.req.SkipCache)
	assert.Equal(t, "2024-06-01", fn.req.Date())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var got struct {
		News           []models.Article `json:"news"`
		MissingRegions []string         `json:"missingRegions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.News, 1)
	assert.Equal(t, []string{"japan"}, got.MissingRegions)
}

func TestGeminiNewsRoute(t *testing.T) {
	t.Parallel()

	fn := &fakeNews{}
	rec := serve(t, fn, &fakeSpeech{}, httptest.NewRequest(http.MethodPost, "/api/news", strings.NewReader(`{"language": "de", "regions": ["uk"]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gemini", fn.variant)
}

func TestNewsBadInput(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json": `{"language": `,
		"bad date": `{"language": "de", "regions": ["uk"], "date": "June 1st"}`,
	} {
		rec := serve(t, &fakeNews{}, &fakeSpeech{}, httptest.NewRequest(http.MethodPost, "/api/news", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Contains(t, rec.Body.String(), `"kind":"invalid_request"`, name)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: at least one region is required", models.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{&config.ConfigurationError{Setting: "OPENAI_API_KEYS", Reason: "not set"}, http.StatusInternalServerError, "configuration"},
		{&failover.ExhaustedError{Pool: "p", Attempts: 1, Errors: []error{errors.New("401")}}, http.StatusBadGateway, "upstream_exhausted"},
		{&normalize.ParseError{Raw: "x", Processed: "x", Err: errors.New("bad")}, http.StatusBadGateway, "malformed_response"},
		{&failover.EmptyResultError{What: "audio", Attempts: 10}, http.StatusBadGateway, "empty_result"},
		{&failover.ExhaustedError{Pool: "p", Attempts: 1, Errors: []error{&failover.ProviderCallError{Attempt: 1, Credential: "…0001", Err: context.DeadlineExceeded}}}, http.StatusBadGateway, "upstream_exhausted"},
		{fmt.Errorf("fetch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		fn := &fakeNews{err: tc.err}
		rec := serve(t, fn, &fakeSpeech{}, httptest.NewRequest(http.MethodGet, "/api/news/english?region=uk&level=advanced", nil))
		assert.Equal(t, tc.status, rec.Code, tc.kind)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.kind, body["kind"])
		assert.Equal(t, tc.err.Error(), body["error"])
	}
}

// stalledGenerator never answers; every call ends with its context.
type stalledGenerator struct {
	calls atomic.Int32
}

func (g *stalledGenerator) GenerateText(ctx context.Context, _, _ string) (string, error) {
	g.calls.Add(1)
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAttemptTimeoutsAreUpstreamExhaustion(t *testing.T) {
	t.Parallel()

	gen := &stalledGenerator{}
	creds := func() ([]string, error) { return []string{"key-0001", "key-0002", "key-0003"}, nil }
	svc := news.NewService(news.Config{
		Gemini:         news.Source{Name: "GOOGLE_GENERATIVE_AI_API_KEYS", Generator: gen, Credentials: creds},
		AttemptTimeout: 20 * time.Millisecond,
		RequestTimeout: 5 * time.Second,
		Logger:         quiet,
	})

	rec := serve(t, svc, &fakeSpeech{}, httptest.NewRequest(http.MethodGet, "/api/news/english?region=uk", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"upstream_exhausted"`)
	assert.EqualValues(t, 3, gen.calls.Load())
}

func TestEnglishNewsReturnsArray(t *testing.T) {
	t.Parallel()

	fn := &fakeNews{english: models.Digest[models.EnglishArticle]{
		Articles: []models.EnglishArticle{{Title: "Parks", Sentences: []string{"Open."}}},
	}}
	rec := serve(t, fn, &fakeSpeech{}, httptest.NewRequest(http.MethodGet, "/api/news/english?region=uk&level=intermediate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"uk"}, fn.req.Regions)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	var got []models.EnglishArticle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, fn.english.Articles, got)
}

func wavSpeech() *fakeSpeech {
	data := audio.EnsureContainer([]byte("0123456789"))
	return &fakeSpeech{audio: models.Audio{Data: data, ContentType: audio.ContentTypeWAV}}
}

func TestGeminiSpeechFull(t *testing.T) {
	t.Parallel()

	fs := wavSpeech()
	rec := serve(t, &fakeNews{}, fs, httptest.NewRequest(http.MethodGet, "/api/tts/gemini?text=Hello&accent=British", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SpeechRequest{Text: "Hello", Voice: "British"}, fs.req)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, `inline; filename="tts.wav"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, fs.audio.Data, rec.Body.Bytes())
}

func TestGeminiSpeechRange(t *testing.T) {
	t.Parallel()

	fs := wavSpeech()
	total := len(fs.audio.Data)

	req := httptest.NewRequest(http.MethodGet, "/api/tts/gemini?text=Hello", nil)
	req.Header.Set("Range", "bytes=44-1000")
	rec := serve(t, &fakeNews{}, fs, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, fmt.Sprintf("bytes 44-%d/%d", total-1, total), rec.Header().Get("Content-Range"))
	assert.Equal(t, "0123456789", rec.Body.String())
}

func TestGeminiSpeechUnsatisfiableRange(t *testing.T) {
	t.Parallel()

	fs := wavSpeech()
	req := httptest.NewRequest(http.MethodGet, "/api/tts/gemini?text=Hello", nil)
	req.Header.Set("Range", "bytes=5000-")
	rec := serve(t, &fakeNews{}, fs, req)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, fmt.Sprintf("bytes */%d", len(fs.audio.Data)), rec.Header().Get("Content-Range"))
}

func TestGeminiSpeechHead(t *testing.T) {
	t.Parallel()

	fs := wavSpeech()
	rec := serve(t, &fakeNews{}, fs, httptest.NewRequest(http.MethodHead, "/api/tts/gemini?text=Hello", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprint(len(fs.audio.Data)), rec.Header().Get("Content-Length"))
	assert.Zero(t, rec.Body.Len())
}

func TestGeminiSpeechBase64(t *testing.T) {
	t.Parallel()

	fs := wavSpeech()
	rec := serve(t, &fakeNews{}, fs, httptest.NewRequest(http.MethodGet, "/api/tts/gemini?text=Hello&output=base64", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Audio string `json:"audio"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	decoded, err := base64.StdEncoding.DecodeString(body.Audio)
	require.NoError(t, err)
	assert.Equal(t, fs.audio.Data, decoded)
}

func TestServiceSpeech(t *testing.T) {
	t.Parallel()

	fs := &fakeSpeech{audio: models.Audio{Data: []byte("RIFFwav"), ContentType: "audio/wav"}}
	body := `{"text": "Good night.", "speaker_id": "p225"}`
	rec := serve(t, &fakeNews{}, fs, httptest.NewRequest(http.MethodPost, "/api/tts", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SpeechRequest{Text: "Good night.", Voice: "p225"}, fs.req)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "none", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "RIFFwav", rec.Body.String())
}

func TestSpeechErrors(t *testing.T) {
	t.Parallel()

	fs := &fakeSpeech{err: fmt.Errorf("%w: missing text parameter", models.ErrInvalidRequest)}
	rec := serve(t, &fakeNews{}, fs, httptest.NewRequest(http.MethodGet, "/api/tts/gemini", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fs = &fakeSpeech{err: &failover.EmptyResultError{What: "audio", Attempts: 10}}
	rec = serve(t, &fakeNews{}, fs, httptest.NewRequest(http.MethodPost, "/api/tts", strings.NewReader(`{"text": "x"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "no audio generated after 10 attempts")
}
