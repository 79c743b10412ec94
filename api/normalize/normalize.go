// Package normalize repairs loosely structured generator output and decodes it into articles.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	constants "news-digest-api/api/constants"
	models "news-digest-api/api/models"
)

const fence = "```"

var (
	// "[1]", "[2, 6]" and the whitespace before them.
	citationRegex = regexp.MustCompile(`\s*\[\d+(?:,\s*\d+)*\]`)

	// ErrNoValidArticles means the response decoded but every article was unusable.
	ErrNoValidArticles = errors.New("no article had a title and sentences")
)

// ParseError is a response that could not be decoded. It keeps both the raw provider
// text and the text after fence stripping so failures can be diagnosed from logs.
type ParseError struct {
	Raw       string
	Processed string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed provider response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LogValue keeps the response bodies out of the message but available as attributes.
func (e *ParseError) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("error", e.Err.Error()),
		slog.String("raw", e.Raw),
		slog.String("processed", e.Processed),
	)
}

// StripFences returns the interior of the first fenced code block in text, dropping an
// optional language tag. Text without a fence is only trimmed.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, fence)
	if start < 0 {
		return text
	}

	body := text[start+len(fence):]
	// The rest of the opening line is the language hint, e.g. "json".
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(body[:nl]); !strings.ContainsAny(tag, "[{") {
			body = body[nl+1:]
		}
	} else {
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// StripCitations removes inline citation markers. Removal repeats until nothing matches,
// so StripCitations(StripCitations(s)) == StripCitations(s).
func StripCitations(s string) string {
	for {
		next := citationRegex.ReplaceAllString(s, "")
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
}

// Parse strips fences and decodes the remainder as JSON into T.
func Parse[T any](raw string) (T, error) {
	var v T
	processed := StripFences(raw)
	if processed == "" {
		return v, &ParseError{Raw: raw, Processed: processed, Err: errors.New("empty response")}
	}
	if err := json.Unmarshal([]byte(processed), &v); err != nil {
		return v, &ParseError{Raw: raw, Processed: processed, Err: err}
	}
	return v, nil
}

// Articles decodes a translated digest for one region. Sentences lose their citation
// markers; articles without a title or any sentence are dropped.
func Articles(raw, region string, log *slog.Logger) ([]models.Article, error) {
	items, err := Parse[[]models.Article](raw)
	if err != nil {
		return nil, err
	}

	return keep(raw, items, log, func(a *models.Article) bool {
		a.Title = strings.TrimSpace(a.Title)
		if a.Region == "" {
			a.Region = region
		}
		sentences := a.Sentences[:0]
		for _, s := range a.Sentences {
			s.English = StripCitations(s.English)
			s.Translated = strings.TrimSpace(s.Translated)
			if s.English != "" {
				sentences = append(sentences, s)
			}
		}
		a.Sentences = sentences
		return a.Title != "" && len(a.Sentences) > 0
	})
}

// EnglishArticles decodes an English-only digest.
func EnglishArticles(raw string, log *slog.Logger) ([]models.EnglishArticle, error) {
	items, err := Parse[[]models.EnglishArticle](raw)
	if err != nil {
		return nil, err
	}

	return keep(raw, items, log, func(a *models.EnglishArticle) bool {
		a.Title = strings.TrimSpace(a.Title)
		sentences := a.Sentences[:0]
		for _, s := range a.Sentences {
			if s = StripCitations(s); s != "" {
				sentences = append(sentences, s)
			}
		}
		a.Sentences = sentences
		return a.Title != "" && len(a.Sentences) > 0
	})
}

func keep[A any](raw string, items []A, log *slog.Logger, clean func(*A) bool) ([]A, error) {
	if log == nil {
		log = constants.Logger
	}

	out := make([]A, 0, len(items))
	for i := range items {
		if clean(&items[i]) {
			out = append(out, items[i])
			continue
		}
		log.Warn("Dropping incomplete article", "index", i)
	}
	if len(items) > 0 && len(out) == 0 {
		return nil, &ParseError{Raw: raw, Processed: StripFences(raw), Err: ErrNoValidArticles}
	}
	return out, nil
}
