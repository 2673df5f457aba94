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
	"context"
	"sync"
)

// MockModel is a scripted Model for tests. If Handler is set it
// decides every call; otherwise responses are served from the queue,
// then Err (or the last response again when Err is nil).
type MockModel struct {
	mu        sync.Mutex
	ModelName string
	Handler   func(prompt string) (string, error)
	Responses []string
	Err       error

	// Prompts records every prompt received, in order.
	Prompts []string

	next int
}

// NewMockModel creates a mock that replays the given responses.
func NewMockModel(responses ...string) *MockModel {
	return &MockModel{ModelName: "mock", Responses: responses}
}

// NewFailingModel creates a mock that always returns err.
func NewFailingModel(err error) *MockModel {
	return &MockModel{ModelName: "mock-failing", Err: err}
}

// Name returns the mock model name.
func (m *MockModel) Name() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// Invoke replays the scripted behavior.
func (m *MockModel) Invoke(ctx context.Context, prompt string, opts ...InvokeOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)

	if m.Handler != nil {
		return m.Handler(prompt)
	}
	if m.next < len(m.Responses) {
		resp := m.Responses[m.next]
		m.next++
		return resp, nil
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) > 0 {
		return m.Responses[len(m.Responses)-1], nil
	}
	return "", ErrUnavailable
}

// CallCount returns how many prompts the mock has seen.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// LastPrompt returns the most recent prompt, or "".
func (m *MockModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}

var _ Model = (*MockModel)(nil)
