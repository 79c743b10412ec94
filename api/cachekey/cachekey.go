// Package cachekey derives stable cache keys from request parameters.
//
// News keys are order-insensitive in their regions; audio keys use the literal text, so
// any difference in whitespace or case is a different key.
package cachekey

import (
	"strings"

	constants "news-digest-api/api/constants"
	models "news-digest-api/api/models"
)

const (
	sep       = ":"
	regionSep = ","

	defaultLanguage = "english"
	defaultVariant  = "default"
)

// News builds "news:<variant>:<date>:<language>:<regions>:<level>".
func News(variant string, req models.NewsRequest) string {
	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = defaultLanguage
	}
	level := req.Level
	if level == "" {
		level = models.LevelIntermediate
	}

	return strings.Join([]string{
		constants.NewsCacheNamespace,
		orDefault(variant, defaultVariant),
		req.Date(),
		language,
		strings.Join(models.NormalizeRegions(req.Regions), regionSep),
		string(level),
	}, sep)
}

// Audio builds "audio:<variant>:<voice>:<text>".
func Audio(variant string, req models.SpeechRequest) string {
	return strings.Join([]string{
		constants.AudioCacheNamespace,
		orDefault(variant, defaultVariant),
		orDefault(req.Voice, constants.DefaultAccent),
		req.Text,
	}, sep)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
