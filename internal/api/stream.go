package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/flawless/internal/llm"
)

// streamMaxDuration bounds one generation or iteration call end to end.
const streamMaxDuration = 2 * time.Minute

type textDelta struct {
	Text string `json:"text"`
}

type streamFailure struct {
	Error string `json:"error"`
}

// streamEvents forwards backend deltas to the client as SSE frames:
// `data: {"text":...}` per delta, then either `data: [DONE]` on clean
// completion or `data: {"error":...}` on mid-stream failure. Each frame
// is flushed immediately; nothing is batched. The upstream stream and
// the call timeout are both released on every exit path, including
// client disconnect.
func streamEvents(ctx context.Context, cancel context.CancelFunc, stream llm.Stream, label, failureMessage string) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer cancel()
			defer func() {
				if err := stream.Close(); err != nil {
					slog.Debug(label+" stream close failed", "error", err)
				}
			}()

			hctx.SetHeader("Content-Type", "text/event-stream")
			hctx.SetHeader("Cache-Control", "no-cache")
			hctx.SetHeader("Connection", "keep-alive")

			bw := hctx.BodyWriter()
			flusher, _ := bw.(http.Flusher)

			start := time.Now()
			deltas := 0
			chars := 0

			for {
				delta, err := stream.Recv()
				if err != nil {
					if errors.Is(err, io.EOF) {
						_ = writeEvent(bw, flusher, "[DONE]")
						slog.Info(label+" stream complete",
							"deltas", deltas, "chars", chars,
							"duration_ms", time.Since(start).Milliseconds())
						return
					}
					payload, marshalErr := json.Marshal(streamFailure{Error: failureMessage})
					if marshalErr == nil {
						_ = writeEvent(bw, flusher, string(payload))
					}
					slog.Error(label+" stream failed",
						"deltas", deltas, "chars", chars,
						"duration_ms", time.Since(start).Milliseconds(),
						"error", err)
					return
				}

				deltas++
				chars += len(delta)
				payload, err := json.Marshal(textDelta{Text: delta})
				if err != nil {
					continue
				}
				if err := writeEvent(bw, flusher, string(payload)); err != nil {
					slog.Debug(label+" client disconnected", "deltas", deltas, "error", err)
					return
				}
				if deltas%50 == 0 {
					slog.Debug(label+" streaming",
						"deltas", deltas, "chars", chars,
						"duration_ms", time.Since(start).Milliseconds())
				}
			}
		},
	}
}

func writeEvent(w io.Writer, flusher http.Flusher, payload string) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
