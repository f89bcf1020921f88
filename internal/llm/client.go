// Package llm wraps the generation backend behind a small streaming
// interface so the HTTP layer and tests stay backend-agnostic.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Stream yields incremental text deltas. Recv returns io.EOF when the
// backend finished cleanly and any other error on failure. Close must be
// called on every exit path.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Config holds backend client settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Client is an explicitly constructed backend client. Callers create one
// and pass it down; there is no package-level instance.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
}

// NewClient builds a backend client from config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:       openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Stream opens a streaming completion with the given system prompt and
// user messages. Cancelling ctx closes the upstream connection.
func (c *Client) Stream(ctx context.Context, system string, messages []openai.ChatCompletionMessage) (Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: append(
			[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}},
			messages...,
		),
	}
	s, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}
	return &chatStream{inner: s}, nil
}

type chatStream struct {
	inner *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *chatStream) Close() error {
	return s.inner.Close()
}
