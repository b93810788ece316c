package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brunobiangulo/deckmerge"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	variant := flag.String("variant", deckmerge.VariantBundled, "Preset to start from: bundled, bundled-14 or upload")
	envFile := flag.String("env", ".env", "Optional .env file with DECKMERGE_* settings")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("loading env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath, *variant)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	engine, err := deckmerge.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	if !cfg.AllowTemplateUpload {
		if _, err := os.Stat(cfg.TemplatePath); err != nil {
			slog.Warn("bundled template not found; runs will fail until it exists",
				"path", cfg.TemplatePath)
		}
	}

	apiKey := os.Getenv("DECKMERGE_API_KEY")
	corsOrigins := os.Getenv("DECKMERGE_CORS_ORIGINS")

	h := newHandler(engine)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = h.routes()
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Minute, // large image uploads
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "variant", cfg.Variant,
			"template_upload", cfg.AllowTemplateUpload)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// loadConfig builds the configuration from a file or a named preset,
// then applies DECKMERGE_* environment overrides.
func loadConfig(path, variant string) (deckmerge.Config, error) {
	var (
		cfg deckmerge.Config
		err error
	)
	if path != "" {
		cfg, err = deckmerge.LoadConfig(path)
	} else {
		cfg, err = deckmerge.ConfigForVariant(variant)
	}
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
