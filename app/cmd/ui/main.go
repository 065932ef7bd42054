package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diagrammer/app/config"
	"diagrammer/internal/infrastructure/apiclient"
	"diagrammer/internal/ui"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// a generation may take as long as the model call plus rendering
	client := apiclient.New(cfg.UI.APIURL, cfg.LLM.Timeout+cfg.Renderer.Timeout+30*time.Second)
	h, err := ui.New(client, logger)
	if err != nil {
		log.Fatalf("ui: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.UI.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     h.Routes(),
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting UI server", "addr", addr, "api_url", cfg.UI.APIURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ui server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("ui server shutdown error", "err", err)
	}
}
