// Package handler is the HTTP surface: news digests, speech, health and diagnostics.
package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	audio "news-digest-api/api/audio"
	constants "news-digest-api/api/constants"
	fetch "news-digest-api/api/fetch"
	kv "news-digest-api/api/kv"
	models "news-digest-api/api/models"
	news "news-digest-api/api/news"
)

// NewsService produces digests.
type NewsService interface {
	Translated(ctx context.Context, variant string, req models.NewsRequest) (models.Digest[models.Article], fetch.Outcome, error)
	English(ctx context.Context, req models.NewsRequest) (models.Digest[models.EnglishArticle], fetch.Outcome, error)
}

// SpeechService produces audio.
type SpeechService interface {
	Gemini(ctx context.Context, req models.SpeechRequest) (models.Audio, fetch.Outcome, error)
	External(ctx context.Context, req models.SpeechRequest) (models.Audio, fetch.Outcome, error)
}

const cacheHeader = "X-Cache"

var endpoints = []string{
	"/api/news",
	"/api/news/openai",
	"/api/news/english",
	"/api/tts",
	"/api/tts/gemini",
	"/api/request-headers",
}

type Handler struct {
	news   NewsService
	speech SpeechService
	store  kv.Store
	log    *slog.Logger
	now    func() time.Time
}

func New(newsSvc NewsService, speechSvc SpeechService, store kv.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = constants.Logger
	}
	if store == nil {
		store = kv.NopStore{}
	}
	return &Handler{
		news:   newsSvc,
		speech: speechSvc,
		store:  store,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Router wires every route behind recovery, CORS and request logging.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(), loggingMiddleware(h.log))

	api := r.Group("/api")
	api.GET("", h.health)
	api.GET("/request-headers", h.requestHeaders)

	api.POST("/news", h.translatedNews(news.VariantGemini))
	api.POST("/news/openai", h.translatedNews(news.VariantOpenAI))
	api.GET("/news/english", h.englishNews)

	api.POST("/tts", h.serviceSpeech)
	api.GET("/tts/gemini", h.geminiSpeech)
	api.HEAD("/tts/gemini", h.geminiSpeech)

	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"endpoints":    endpoints,
		"cache_status": h.store.Connected(),
		"timestamp":    h.now().Format(time.RFC3339),
		"version":      constants.Version,
	})
}

func (h *Handler) requestHeaders(c *gin.Context) {
	headers := make(map[string]string, len(c.Request.Header))
	for name, values := range c.Request.Header {
		headers[name] = strings.Join(values, ", ")
	}
	c.JSON(http.StatusOK, gin.H{"headers": headers})
}

type newsBody struct {
	Language  string   `json:"language"`
	Regions   []string `json:"regions"`
	Level     string   `json:"level"`
	Date      string   `json:"date"`
	SkipCache bool     `json:"skipCache"`
}

func (h *Handler) asOf(date string) (time.Time, error) {
	if date == "" {
		return h.now(), nil
	}
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", models.ErrInvalidRequest)
	}
	return t, nil
}

func (h *Handler) translatedNews(variant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body newsBody
		if err := c.ShouldBindJSON(&body); err != nil {
			abortWithError(c, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
			return
		}
		asOf, err := h.asOf(body.Date)
		if err != nil {
			abortWithError(c, err)
			return
		}

		digest, outcome, err := h.news.Translated(c.Request.Context(), variant, models.NewsRequest{
			Language:  body.Language,
			Regions:   body.Regions,
			Level:     models.Level(body.Level),
			AsOf:      asOf,
			SkipCache: body.SkipCache,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Header(cacheHeader, string(outcome))
		c.JSON(http.StatusOK, digest)
	}
}

func (h *Handler) englishNews(c *gin.Context) {
	asOf, err := h.asOf(c.Query("date"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	skip, _ := strconv.ParseBool(c.Query("skipCache"))

	digest, outcome, err := h.news.English(c.Request.Context(), models.NewsRequest{
		Regions:   []string{c.Query("region")},
		Level:     models.Level(c.Query("level")),
		AsOf:      asOf,
		SkipCache: skip,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header(cacheHeader, string(outcome))
	c.JSON(http.StatusOK, digest.Articles)
}

func (h *Handler) geminiSpeech(c *gin.Context) {
	a, outcome, err := h.speech.Gemini(c.Request.Context(), models.SpeechRequest{
		Text:  c.Query("text"),
		Voice: c.Query("accent"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header(cacheHeader, string(outcome))

	if c.Query("output") == "base64" {
		c.JSON(http.StatusOK, gin.H{"audio": base64.StdEncoding.EncodeToString(a.Data)})
		return
	}

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Disposition", `inline; filename="tts.wav"`)

	rng := audio.ParseRange(c.GetHeader("Range"))
	chunk, cr, err := audio.Slice(a.Data, rng)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", cr.Total))
		abortWithError(c, err)
		return
	}

	status := http.StatusOK
	if rng != nil {
		status = http.StatusPartialContent
		c.Header("Content-Range", cr.Header())
	}
	h.writeAudio(c, status, a.ContentType, chunk)
}

type speechBody struct {
	Text      string `json:"text"`
	SpeakerID string `json:"speaker_id"`
}

func (h *Handler) serviceSpeech(c *gin.Context) {
	var body speechBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
		return
	}

	a, outcome, err := h.speech.External(c.Request.Context(), models.SpeechRequest{Text: body.Text, Voice: body.SpeakerID})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header(cacheHeader, string(outcome))
	c.Header("Cache-Control", "no-cache")
	c.Header("Accept-Ranges", "none")
	h.writeAudio(c, http.StatusOK, a.ContentType, a.Data)
}

func (h *Handler) writeAudio(c *gin.Context, status int, contentType string, data []byte) {
	if contentType == "" {
		contentType = audio.ContentTypeWAV
	}
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.Itoa(len(data)))
		c.Status(status)
		return
	}
	c.Data(status, contentType, data)
}
