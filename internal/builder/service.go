// Package builder is the service layer behind the HTTP API: URL capture
// plus streaming prototype generation and iteration.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dgnsrekt/flawless/internal/capture"
	"github.com/dgnsrekt/flawless/internal/llm"
	"github.com/dgnsrekt/flawless/internal/prompt"
)

// Capturer snapshots a page. Implemented by capture.Service.
type Capturer interface {
	Capture(ctx context.Context, pageURL string) (capture.Result, error)
}

// Generator opens a streaming completion. Implemented by llm.Client.
type Generator interface {
	Stream(ctx context.Context, system string, messages []openai.ChatCompletionMessage) (llm.Stream, error)
}

// GenerateParams is one initial-generation request. Screenshot and
// Prompt are mandatory; HTML is optional and capped at prompt-assembly
// time; URL is logged only.
type GenerateParams struct {
	Screenshot string
	HTML       string
	Prompt     string
	URL        string
}

// IterateParams is one change-request. Both fields are mandatory; URL is
// logged only.
type IterateParams struct {
	CurrentHTML string
	Instruction string
	URL         string
}

// Service validates requests and composes capture, prompt assembly and
// the generation backend. Both collaborators are injected.
type Service struct {
	capturer  Capturer
	generator Generator
}

func NewService(capturer Capturer, generator Generator) *Service {
	return &Service{capturer: capturer, generator: generator}
}

// Capture validates the URL scheme and snapshots the page.
func (s *Service) Capture(ctx context.Context, rawURL string) (capture.Result, error) {
	if err := s.requireNonEmpty(rawURL, "url"); err != nil {
		return capture.Result{}, err
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return capture.Result{}, newError(CodeValidation, "url must be a valid http or https URL", err)
	}

	result, err := s.capturer.Capture(ctx, parsed.String())
	if err != nil {
		return capture.Result{}, newError(CodeCapture, "failed to capture the URL, please try again", err)
	}
	return result, nil
}

// Generate opens the initial-generation stream. Validation failures
// return before any backend call.
func (s *Service) Generate(ctx context.Context, p GenerateParams) (llm.Stream, error) {
	if err := s.requireNonEmpty(p.Screenshot, "screenshot"); err != nil {
		return nil, err
	}
	if err := s.requireNonEmpty(p.Prompt, "prompt"); err != nil {
		return nil, err
	}

	slog.Info("generation requested",
		"url", p.URL,
		"screenshot_chars", len(p.Screenshot),
		"html_chars", len(p.HTML),
		"prompt_preview", preview(p.Prompt),
	)

	start := time.Now()
	stream, err := s.generator.Stream(ctx, prompt.GenerationSystem, prompt.GenerationMessages(p.Screenshot, p.HTML, p.Prompt))
	if err != nil {
		slog.Error("generation stream open failed", "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, newError(CodeBackend, "failed to start generation", err)
	}
	slog.Info("generation stream opened", "duration_ms", time.Since(start).Milliseconds())
	return stream, nil
}

// Iterate opens a change-request stream against the current prototype.
func (s *Service) Iterate(ctx context.Context, p IterateParams) (llm.Stream, error) {
	if err := s.requireNonEmpty(p.CurrentHTML, "currentHtml"); err != nil {
		return nil, err
	}
	if err := s.requireNonEmpty(p.Instruction, "instruction"); err != nil {
		return nil, err
	}

	slog.Info("iteration requested",
		"url", p.URL,
		"current_html_chars", len(p.CurrentHTML),
		"instruction_preview", preview(p.Instruction),
	)

	start := time.Now()
	stream, err := s.generator.Stream(ctx, prompt.IterationSystem, prompt.IterationMessages(p.CurrentHTML, p.Instruction))
	if err != nil {
		slog.Error("iteration stream open failed", "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, newError(CodeBackend, "failed to start iteration", err)
	}
	slog.Info("iteration stream opened", "duration_ms", time.Since(start).Milliseconds())
	return stream, nil
}

func (s *Service) requireNonEmpty(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return newError(CodeValidation, fmt.Sprintf("%s is required", name), nil)
	}
	return nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= 100 {
		return text
	}
	return string(runes[:100])
}
