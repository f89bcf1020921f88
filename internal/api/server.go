// Package api exposes the prototype studio over HTTP: page capture plus
// the two SSE streaming endpoints for generation and iteration.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/flawless/internal/builder"
	"github.com/dgnsrekt/flawless/internal/capture"
	"github.com/dgnsrekt/flawless/internal/llm"
)

// Service is the studio service consumed by the HTTP layer.
type Service interface {
	Capture(ctx context.Context, rawURL string) (capture.Result, error)
	Generate(ctx context.Context, p builder.GenerateParams) (llm.Stream, error)
	Iterate(ctx context.Context, p builder.IterateParams) (llm.Stream, error)
}

type captureInput struct {
	Body struct {
		URL string `json:"url,omitempty" doc:"Public http or https URL to capture"`
	}
}

type captureOutput struct {
	Body capture.Result
}

type generateInput struct {
	Body struct {
		Screenshot string `json:"screenshot,omitempty" doc:"Base64-encoded PNG screenshot from /capture"`
		HTML       string `json:"html,omitempty" doc:"Sanitized HTML sample from /capture"`
		Prompt     string `json:"prompt,omitempty" doc:"What the prototype should become"`
		URL        string `json:"url,omitempty" doc:"Source URL, logged only"`
	}
}

type iterateInput struct {
	Body struct {
		CurrentHTML string `json:"currentHtml,omitempty" doc:"Current prototype HTML"`
		Instruction string `json:"instruction,omitempty" doc:"Change to apply"`
		URL         string `json:"url,omitempty" doc:"Source URL, logged only"`
	}
}

// NewServer builds the chi/huma handler around svc.
func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Flawless Prototype Studio API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "capture", Method: http.MethodPost, Path: "/capture", Summary: "Capture a page snapshot", Tags: []string{"Capture"}},
		func(ctx context.Context, input *captureInput) (*captureOutput, error) {
			result, err := svc.Capture(ctx, input.Body.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &captureOutput{}
			out.Body = result
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "generate", Method: http.MethodPost, Path: "/generate", Summary: "Generate a prototype from a capture", Tags: []string{"Generation"}},
		func(ctx context.Context, input *generateInput) (*huma.StreamResponse, error) {
			streamCtx, cancel := context.WithTimeout(ctx, streamMaxDuration)
			stream, err := svc.Generate(streamCtx, builder.GenerateParams{
				Screenshot: input.Body.Screenshot,
				HTML:       input.Body.HTML,
				Prompt:     input.Body.Prompt,
				URL:        input.Body.URL,
			})
			if err != nil {
				cancel()
				return nil, mapErr(err)
			}
			return streamEvents(streamCtx, cancel, stream, "generate", "Generation failed"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "iterate", Method: http.MethodPost, Path: "/iterate", Summary: "Apply a change request to the prototype", Tags: []string{"Generation"}},
		func(ctx context.Context, input *iterateInput) (*huma.StreamResponse, error) {
			streamCtx, cancel := context.WithTimeout(ctx, streamMaxDuration)
			stream, err := svc.Iterate(streamCtx, builder.IterateParams{
				CurrentHTML: input.Body.CurrentHTML,
				Instruction: input.Body.Instruction,
				URL:         input.Body.URL,
			})
			if err != nil {
				cancel()
				return nil, mapErr(err)
			}
			return streamEvents(streamCtx, cancel, stream, "iterate", "Iteration failed"), nil
		})

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *builder.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case builder.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		default:
			// Capture and backend failures surface a generic message;
			// the cause stays in server logs.
			return huma.Error500InternalServerError(coded.Message)
		}
	}
	return huma.Error500InternalServerError("internal error")
}
