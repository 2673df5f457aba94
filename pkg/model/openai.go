// Copyright 2025 ZUB3C
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/httpclient"
)

// chatRequest is the OpenAI chat-completions payload.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// transportRetryDelay seeds the doubling backoff between full
// request attempts.
const transportRetryDelay = 500 * time.Millisecond

// OpenAIModel talks to any OpenAI-compatible chat-completions server.
type OpenAIModel struct {
	cfg    config.ModelEndpointConfig
	client *httpclient.Client
}

// NewOpenAIModel creates a model over the given endpoint config.
func NewOpenAIModel(cfg config.ModelEndpointConfig) *OpenAIModel {
	hc := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	)
	return &OpenAIModel{cfg: cfg, client: hc}
}

// Name returns the configured model identifier.
func (m *OpenAIModel) Name() string {
	return m.cfg.Model
}

// Invoke sends the prompt as a single user message. Status-aware
// retries happen inside the HTTP client; Retry re-runs the whole
// exchange on transport drops and malformed replies, within the
// per-call deadline.
func (m *OpenAIModel) Invoke(ctx context.Context, prompt string, opts ...InvokeOption) (string, error) {
	o := applyOptions(opts)

	timeout := m.cfg.Timeout()
	if o.timeout > 0 {
		timeout = o.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := chatRequest{
		Model:       m.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	}
	if o.maxTokens > 0 {
		req.MaxTokens = o.maxTokens
	}
	if o.temperature != nil {
		req.Temperature = *o.temperature
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	attempts := m.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	content, err := Retry(ctx, attempts, transportRetryDelay, func(ctx context.Context) (string, error) {
		return m.exchange(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s after %v", ErrTimeout, m.cfg.Model, timeout)
		}
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, m.cfg.Model, err)
	}
	return content, nil
}

// exchange performs one full request/response round trip. Errors come
// back unclassified so Retry can tell context expiry from endpoint
// failures.
func (m *OpenAIModel) exchange(ctx context.Context, payload []byte) (string, error) {
	url := strings.TrimSuffix(m.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := m.cfg.APIKey(); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("invalid response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no choices returned")
	}

	return parsed.Choices[0].Message.Content, nil
}

var _ Model = (*OpenAIModel)(nil)
