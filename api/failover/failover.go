// Package failover tries a unit of work against each credential of a permuted pool in turn,
// and optionally repeats whole passes while the provider answers with nothing.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	config "news-digest-api/api/config"
	constants "news-digest-api/api/constants"
	pool "news-digest-api/api/pool"
)

// Work performs one remote call plus normalisation with a single credential.
type Work[T any] func(ctx context.Context, credential string) (T, error)

// Options configures a failover pass.
type Options struct {
	// Name identifies the pool in logs and configuration errors.
	Name string
	// AttemptTimeout bounds each credential attempt; zero means no per-attempt deadline.
	AttemptTimeout time.Duration
	Logger         *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return constants.Logger
}

// ProviderCallError is one credential's failure.
type ProviderCallError struct {
	Attempt    int
	Credential string
	Err        error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("attempt %d with credential %s: %v", e.Attempt, e.Credential, e.Err)
}

func (e *ProviderCallError) Unwrap() error {
	return e.Err
}

// ExhaustedError means every credential in the permutation failed. All attempt errors are kept;
// the message and Unwrap expose the last one.
type ExhaustedError struct {
	Pool     string
	Attempts int
	Errors   []error
}

func (e *ExhaustedError) Last() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d %s credentials failed, last error: %v", e.Attempts, e.Pool, e.Last())
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last()
}

// EmptyResultError is a structurally valid response carrying no payload.
type EmptyResultError struct {
	What     string
	Attempts int
}

func (e *EmptyResultError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("no %s generated after %d attempts", e.What, e.Attempts)
	}
	return fmt.Sprintf("no %s generated", e.What)
}

// Attempt runs work once per credential, in order, stopping at the first success.
// Configuration errors and cancellation of ctx abort the pass immediately.
func Attempt[T any](ctx context.Context, opts Options, creds []string, work Work[T]) (T, error) {
	var zero T
	if len(creds) == 0 {
		return zero, &config.ConfigurationError{Setting: opts.Name, Reason: "no credentials configured"}
	}

	log := opts.logger()
	errs := make([]error, 0, len(creds))
	for i, cred := range creds {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("failover for %s cancelled after %d attempts: %w", opts.Name, i, err)
		}

		v, err := runAttempt(ctx, opts.AttemptTimeout, cred, work)
		if err == nil {
			if i > 0 {
				log.Info("Provider call succeeded after failover", "pool", opts.Name, "attempt", i+1, "credential", pool.Mask(cred))
			}
			return v, nil
		}

		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return zero, err
		}

		callErr := &ProviderCallError{Attempt: i + 1, Credential: pool.Mask(cred), Err: err}
		errs = append(errs, callErr)
		log.Warn("Provider call failed, trying next credential",
			"pool", opts.Name,
			"attempt", i+1,
			"of", len(creds),
			"credential", pool.Mask(cred),
			"error", err)
	}

	return zero, &ExhaustedError{Pool: opts.Name, Attempts: len(creds), Errors: errs}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, cred string, work Work[T]) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return work(ctx, cred)
}

// RetryOptions bounds the outer loop around whole failover passes.
type RetryOptions struct {
	Name        string
	MaxAttempts int
	Delay       time.Duration
	// What names the payload in EmptyResultError messages.
	What   string
	Logger *slog.Logger
}

// Retry repeats pass until it yields a non-empty value or MaxAttempts passes have run.
// A failed pass and an empty pass are retried alike; configuration errors are not retried.
func Retry[T any](ctx context.Context, opts RetryOptions, pass func(ctx context.Context) (T, error), empty func(T) bool) (T, error) {
	log := opts.Logger
	if log == nil {
		log = constants.Logger
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		result    T
		attempts  int
		lastEmpty bool
	)
	op := func() error {
		attempts++
		v, err := pass(ctx)
		if err != nil {
			lastEmpty = false
			var cfgErr *config.ConfigurationError
			if errors.As(err, &cfgErr) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if empty != nil && empty(v) {
			lastEmpty = true
			return &EmptyResultError{What: opts.What}
		}
		result = v
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Info("Retrying provider pass", "pool", opts.Name, "attempt", attempts, "max", maxAttempts, "error", err, "next", next)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.Delay), uint64(maxAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var zero T
		if lastEmpty {
			return zero, &EmptyResultError{What: opts.What, Attempts: attempts}
		}
		return zero, err
	}
	return result, nil
}
