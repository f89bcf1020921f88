package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/flawless/internal/api"
	"github.com/dgnsrekt/flawless/internal/builder"
	"github.com/dgnsrekt/flawless/internal/capture"
	"github.com/dgnsrekt/flawless/internal/config"
	"github.com/dgnsrekt/flawless/internal/llm"
	"github.com/dgnsrekt/flawless/internal/netutil"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load server config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("server config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"model", cfg.Model,
		"max_tokens", cfg.MaxTokens,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	backend, err := llm.NewClient(llm.Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		slog.Error("failed to create generation backend client", "error", err)
		os.Exit(1)
	}

	svc := builder.NewService(capture.NewService(cfg.BrowserPath), backend)
	h := api.NewServer(svc)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("server listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
