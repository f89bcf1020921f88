package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgnsrekt/flawless/internal/capture"
)

// Client talks to the studio API. Streaming responses have no overall
// client-side timeout; the server bounds call duration.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
	}
}

type captureRequest struct {
	URL string `json:"url"`
}

type generateRequest struct {
	Screenshot string `json:"screenshot"`
	HTML       string `json:"html"`
	Prompt     string `json:"prompt"`
	URL        string `json:"url"`
}

type iterateRequest struct {
	CurrentHTML string `json:"currentHtml"`
	Instruction string `json:"instruction"`
	URL         string `json:"url"`
}

// Capture calls POST /capture and decodes the snapshot.
func (c *Client) Capture(ctx context.Context, rawURL string) (capture.Result, error) {
	resp, err := c.post(ctx, "/capture", captureRequest{URL: rawURL})
	if err != nil {
		return capture.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return capture.Result{}, decodeAPIError(resp)
	}
	var result capture.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return capture.Result{}, fmt.Errorf("decode capture response: %w", err)
	}
	return result, nil
}

// Generate calls POST /generate and hands back the open SSE body.
func (c *Client) Generate(ctx context.Context, cap capture.Result, goal string) (io.ReadCloser, error) {
	return c.openStream(ctx, "/generate", generateRequest{
		Screenshot: cap.Screenshot,
		HTML:       cap.HTML,
		Prompt:     goal,
		URL:        cap.URL,
	})
}

// Iterate calls POST /iterate and hands back the open SSE body.
func (c *Client) Iterate(ctx context.Context, currentHTML, instruction, sourceURL string) (io.ReadCloser, error) {
	return c.openStream(ctx, "/iterate", iterateRequest{
		CurrentHTML: currentHTML,
		Instruction: instruction,
		URL:         sourceURL,
	})
}

func (c *Client) openStream(ctx context.Context, path string, body any) (io.ReadCloser, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	return resp, nil
}

// decodeAPIError pulls the user-facing message out of an error
// response. The API emits RFC 7807 problems ("detail"); older bodies
// use {"error"}.
func decodeAPIError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return errors.New(payload.Detail)
		}
		if payload.Error != "" {
			return errors.New(payload.Error)
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

// consume reads SSE frames off the stream until it ends. Deltas grow the
// accumulation buffer and schedule debounced display updates; a clean
// end (or [DONE]) snaps the final extraction immediately. An error frame
// is terminal and returned as-is. Malformed lines are skipped silently.
func (s *Session) consume(body io.Reader, label string) error {
	start := time.Now()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	deltas := 0
	chars := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			continue
		}

		var event struct {
			Text  string `json:"text"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		if event.Error != "" {
			return errors.New(event.Error)
		}
		if event.Text == "" {
			continue
		}

		deltas++
		chars += len(event.Text)
		s.appendDelta(event.Text)
		if deltas%50 == 0 {
			slog.Debug(label+" progress",
				"deltas", deltas, "chars", chars,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	s.finish()
	slog.Info(label+" stream consumed",
		"deltas", deltas, "chars", chars,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
