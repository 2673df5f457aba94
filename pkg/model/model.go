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

// Package model routes reasoning tasks to one of two OpenAI-compatible
// chat endpoints and gives every caller a uniform invocation contract.
//
// The partition is static: thought generation and final synthesis go
// to the expensive tier, everything else to the cheap tier. Callers
// supply only a prompt and optional per-call limits; credentials and
// transport live here.
package model

import (
	"context"
	"errors"
	"time"
)

// Model is one logical chat endpoint.
type Model interface {
	// Name returns the configured model identifier.
	Name() string

	// Invoke sends a single-user-message prompt and returns the raw
	// text of the first choice. It fails with ErrUnavailable after the
	// transport retries are exhausted and with ErrTimeout when the
	// per-call deadline or the request deadline elapses.
	Invoke(ctx context.Context, prompt string, opts ...InvokeOption) (string, error)
}

// Sentinel error kinds observable outside the package.
var (
	// ErrUnavailable means the endpoint failed after retries.
	ErrUnavailable = errors.New("model unavailable")

	// ErrTimeout means the call deadline elapsed.
	ErrTimeout = errors.New("model timeout")
)

// InvokeOption tunes a single call.
type InvokeOption func(*invokeOptions)

type invokeOptions struct {
	timeout     time.Duration
	maxTokens   int
	temperature *float64
}

// WithTimeout overrides the endpoint's default per-call timeout.
func WithTimeout(d time.Duration) InvokeOption {
	return func(o *invokeOptions) { o.timeout = d }
}

// WithMaxTokens overrides the endpoint's default completion budget.
func WithMaxTokens(n int) InvokeOption {
	return func(o *invokeOptions) { o.maxTokens = n }
}

// WithTemperature overrides the endpoint's default temperature.
func WithTemperature(t float64) InvokeOption {
	return func(o *invokeOptions) { o.temperature = &t }
}

func applyOptions(opts []InvokeOption) invokeOptions {
	var o invokeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
