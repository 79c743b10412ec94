package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrInvalidRequest marks caller mistakes (missing or out-of-range parameters).
var ErrInvalidRequest = errors.New("invalid request")

// Level is the learner's English proficiency.
type Level string

const (
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel accepts the two supported levels; an empty string yields the intermediate default.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "", LevelIntermediate:
		return LevelIntermediate, nil
	case LevelAdvanced:
		return LevelAdvanced, nil
	default:
		return "", fmt.Errorf("%w: level must be %q or %q, got %q", ErrInvalidRequest, LevelIntermediate, LevelAdvanced, s)
	}
}

// DateLayout is the ISO calendar date used for as-of dates and cache keys.
const DateLayout = "2006-01-02"

// NewsRequest describes one digest. Regions are order-irrelevant.
type NewsRequest struct {
	Language  string
	Regions   []string
	Level     Level
	AsOf      time.Time
	SkipCache bool
}

// Validate normalises the request in place and rejects unusable ones.
func (r *NewsRequest) Validate() error {
	r.Language = strings.TrimSpace(r.Language)
	r.Regions = NormalizeRegions(r.Regions)
	if len(r.Regions) == 0 {
		return fmt.Errorf("%w: at least one region is required", ErrInvalidRequest)
	}
	level, err := ParseLevel(string(r.Level))
	if err != nil {
		return err
	}
	r.Level = level
	if r.AsOf.IsZero() {
		r.AsOf = time.Now().UTC()
	}
	return nil
}

// Date returns the as-of date in DateLayout.
func (r NewsRequest) Date() string {
	return r.AsOf.Format(DateLayout)
}

// NormalizeRegions trims, lower-cases, de-duplicates and sorts region codes.
func NormalizeRegions(regions []string) []string {
	out := make([]string, 0, len(regions))
	for _, region := range regions {
		region = strings.ToLower(strings.TrimSpace(region))
		if region != "" {
			out = append(out, region)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

type Sentence struct {
	English    string `json:"english"`
	Translated string `json:"translated"`
}

type Article struct {
	Title           string     `json:"title"`
	TitleTranslated string     `json:"titleTranslated"`
	Region          string     `json:"region"`
	Sentences       []Sentence `json:"sentences"`
	Source          string     `json:"source"`
	SourceURL       string     `json:"sourceUrl"`
	PublishedDate   string     `json:"publishedDate"`
}

// EnglishArticle is the English-only digest shape: sentences are plain strings.
type EnglishArticle struct {
	Title         string   `json:"title"`
	Sentences     []string `json:"sentences"`
	Source        string   `json:"source"`
	SourceURL     string   `json:"sourceUrl"`
	PublishedDate string   `json:"publishedDate"`
}

// Digest is the result of a multi-region fetch. MissingRegions is never cached.
type Digest[A any] struct {
	Articles       []A      `json:"news"`
	MissingRegions []string `json:"missingRegions,omitempty"`
}

// Complete reports whether every requested region produced content.
func (d Digest[A]) Complete() bool {
	return len(d.MissingRegions) == 0
}

// SpeechRequest asks for audio of Text read with Voice (accent or speaker id).
type SpeechRequest struct {
	Text  string
	Voice string
}

func (r *SpeechRequest) Validate(defaultVoice string) error {
	if r.Text == "" {
		return fmt.Errorf("%w: missing text parameter", ErrInvalidRequest)
	}
	if r.Voice == "" {
		r.Voice = defaultVoice
	}
	return nil
}

// Audio is a playable payload, already wrapped in a container.
type Audio struct {
	Data        []byte
	ContentType string
}

// AudioEnvelope is the cached JSON form of Audio.
type AudioEnvelope struct {
	Base64Audio string `json:"base64Audio"`
	ContentType string `json:"contentType"`
	Encoding    string `json:"encoding,omitempty"`
}
