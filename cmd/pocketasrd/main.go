// Command pocketasrd serves a recognizer over WebSocket: one connection,
// one utterance, binary frames in, JSON transcript frames out.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gospeech/pocketasr/internal/config"
	"github.com/gospeech/pocketasr/internal/session"
	"github.com/gospeech/pocketasr/internal/streamserver"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to recognizer config file")
	addr := flag.String("addr", ":8088", "HTTP listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger.Info("config loaded", "path", *configPath)

	rec, err := session.NewRecognizer(cfg)
	if err != nil {
		logger.Error("loading recognizer", "error", err)
		os.Exit(1)
	}
	logger.Info("recognizer loaded")

	engine := streamserver.NewRecognizerEngine(rec)
	handler := streamserver.NewHandler(engine, logger)

	mux := http.NewServeMux()
	mux.Handle("/stream", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: *addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		_ = srv.Close()
	}()

	logger.Info("listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
