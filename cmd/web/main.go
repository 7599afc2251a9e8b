package main

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ai-anchor-studio/internal/anchor"
	"ai-anchor-studio/internal/gemini"
	"ai-anchor-studio/internal/httpclient"
	"ai-anchor-studio/internal/storage"
	"ai-anchor-studio/internal/studio"
)

//go:embed static/*
var staticFS embed.FS

type server struct {
	session *studio.Session
	logger  *slog.Logger
}

func main() {
	_ = godotenv.Load()

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		panic("GEMINI_API_KEY is required")
	}

	addr := strings.TrimSpace(getEnv("WEB_ADDR", ":8080"))

	httpTimeout := time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second
	if httpTimeout <= 0 {
		httpTimeout = 180 * time.Second
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: getEnvBool("PREFER_IPV4", true),
		Timeout:    httpTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     apiKey,
		BaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		APIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		HTTPClient: httpClient,
		Logger:     logger,
	})

	templates := anchor.NewStore(anchor.StoreOptions{
		Slot:   storage.NewFileSlot(strings.TrimSpace(getEnv("TEMPLATES_PATH", "data/templates.json"))),
		Logger: logger,
	})

	s := &server{
		session: studio.NewSession(studio.SessionOptions{
			Templates: templates,
			Generator: gem,
			Logger:    logger,
		}),
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/catalog", s.handleCatalog)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/options", s.handleOptions)
	mux.HandleFunc("/api/face", s.handleFace)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/templates", s.handleTemplates)
	mux.HandleFunc("/api/templates/load", s.handleTemplateLoad)

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticSub)))

	srv := &http.Server{
		Addr:              addr,
		Handler:           withLogging(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("web started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
