package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	constants "news-digest-api/api/constants"
	handler "news-digest-api/api/handler"
	models "news-digest-api/api/models"
	news "news-digest-api/api/news"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "news-digest-api",
		Short:         "Translated news digests and sentence audio for language learners",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}
	root.AddCommand(serveCmd(), newsCmd(), speakCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           handler.New(a.news, a.speech, a.store, a.log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", "addr", "http://localhost:"+a.cfg.Port, "version", constants.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func newsCmd() *cobra.Command {
	var (
		variant   string
		language  string
		regions   []string
		level     string
		date      string
		skipCache bool
	)

	cmd := &cobra.Command{
		Use:   "news",
		Short: "Fetch one digest and print it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lvl, err := models.ParseLevel(level)
			if err != nil {
				return err
			}
			asOf := time.Now().UTC()
			if date != "" {
				if asOf, err = time.Parse(models.DateLayout, date); err != nil {
					return fmt.Errorf("%w: date must be YYYY-MM-DD", models.ErrInvalidRequest)
				}
			}

			a, err := loadApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			req := models.NewsRequest{Language: language, Regions: regions, Level: lvl, AsOf: asOf, SkipCache: skipCache}
			var out any
			if variant == news.VariantEnglish {
				digest, _, err := a.news.English(cmd.Context(), req)
				if err != nil {
					return err
				}
				out = digest
			} else {
				digest, _, err := a.news.Translated(cmd.Context(), variant, req)
				if err != nil {
					return err
				}
				out = digest
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&variant, "provider", news.VariantGemini, "gemini, openai or english")
	f.StringVar(&language, "language", "", "target language for translated digests")
	f.StringArrayVar(&regions, "region", nil, "region code, repeatable")
	f.StringVar(&level, "level", string(models.LevelIntermediate), "intermediate or advanced")
	f.StringVar(&date, "date", "", "as-of date, YYYY-MM-DD (default today)")
	f.BoolVar(&skipCache, "skip-cache", false, "bypass the cache read")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func speakCmd() *cobra.Command {
	var text, accent, out string

	cmd := &cobra.Command{
		Use:   "speak",
		Short: "Synthesize one sentence with Gemini and write a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			audio, outcome, err := a.speech.Gemini(cmd.Context(), models.SpeechRequest{Text: text, Voice: accent})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, audio.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			a.log.Info("Audio written", "path", out, "bytes", len(audio.Data), "cache", outcome)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&text, "text", "", "text to read")
	f.StringVar(&accent, "accent", "", "American, British, Australian or Indian")
	f.StringVarP(&out, "out", "o", "tts.wav", "output file")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
