package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	audio "news-digest-api/api/audio"
	config "news-digest-api/api/config"
	failover "news-digest-api/api/failover"
	models "news-digest-api/api/models"
	normalize "news-digest-api/api/normalize"
)

// classify maps an error onto an HTTP status and a machine-readable kind.
func classify(err error) (int, string) {
	var (
		cfgErr       *config.ConfigurationError
		exhaustedErr *failover.ExhaustedError
		emptyErr     *failover.EmptyResultError
		parseErr     *normalize.ParseError
	)

	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "configuration"
	case errors.As(err, &exhaustedErr):
		return http.StatusBadGateway, "upstream_exhausted"
	case errors.As(err, &emptyErr):
		return http.StatusBadGateway, "empty_result"
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "malformed_response"
	case errors.Is(err, context.DeadlineExceeded):
		// Only the request's own deadline gets here; attempt timeouts end up inside an
		// ExhaustedError.
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, audio.ErrUnsatisfiable):
		return http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func abortWithError(c *gin.Context, err error) {
	status, kind := classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": kind})
}
