// Command builder drives the full capture → generate → iterate workflow
// from the terminal, rendering the evolving prototype in a local
// browser preview.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgnsrekt/flawless/internal/config"
	"github.com/dgnsrekt/flawless/internal/preview"
	"github.com/dgnsrekt/flawless/internal/session"
)

func main() {
	cfg, err := config.LoadBuilder()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load builder config:", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	urlFlag := flag.String("url", "", "URL to capture (prompted for when omitted)")
	goalFlag := flag.String("goal", "", "what the prototype should become (prompted for when omitted)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pv := preview.NewServer()
	if err := pv.Start(cfg.PreviewAddr); err != nil {
		fmt.Fprintln(os.Stderr, "failed to start preview server:", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pv.Shutdown(shutdownCtx)
	}()

	sess := session.New(session.NewClient(cfg.ServerURL), session.Options{
		Display: pv.Push,
		Phase:   func(text string) { fmt.Println(text) },
	})

	stdin := bufio.NewReader(os.Stdin)

	pageURL := strings.TrimSpace(*urlFlag)
	for {
		if pageURL == "" {
			pageURL = promptLine(stdin, "URL to capture: ")
			if pageURL == "" {
				return
			}
		}
		if err := sess.Capture(ctx, pageURL); err != nil {
			fmt.Println("Capture failed:", err)
			pageURL = ""
			continue
		}
		break
	}
	result := sess.CaptureResult()
	fmt.Printf("Captured %q (%s)\n", result.Title, result.URL)

	goal := strings.TrimSpace(*goalFlag)
	for {
		if goal == "" {
			goal = promptLine(stdin, "What should the prototype become? ")
			if goal == "" {
				return
			}
		}
		if err := sess.Generate(ctx, goal); err != nil {
			fmt.Println("Generation failed:", err)
			goal = ""
			continue
		}
		break
	}
	fmt.Println("Prototype ready — live preview at http://" + cfg.PreviewAddr)
	fmt.Println("Describe changes to iterate, /deploy to print the deploy prompt, /quit to exit.")

	for {
		line := promptLine(stdin, "> ")
		switch {
		case line == "" || line == "/quit":
			return
		case line == "/deploy":
			fmt.Println(sess.DeployPrompt())
		default:
			if err := sess.Iterate(ctx, line); err != nil {
				fmt.Println("Iteration failed:", err)
				continue
			}
			count := sess.IterationCount()
			plural := "s"
			if count == 1 {
				plural = ""
			}
			fmt.Printf("Applied (%d iteration%s)\n", count, plural)
		}
	}
}

func promptLine(r *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, err := r.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func setupLogger(level string) {
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
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
}
