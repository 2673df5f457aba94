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

package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder produces deterministic vectors derived from the text,
// so equal texts always embed identically and similarity is stable
// across test runs. Set Err to force failures.
type MockEmbedder struct {
	Dim int
	Err error

	// Calls counts Embed and EmbedBatch inputs.
	Calls int
}

// NewMockEmbedder creates a mock with the given dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

// Embed returns a unit vector seeded by the text's hash.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Calls++
	return m.vectorFor(text), nil
}

// EmbedBatch embeds every text independently.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Calls += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.Dim)
	var norm float64
	for i := range vec {
		// xorshift over the seed gives a repeatable pseudo-random walk
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

// Dimension returns the mock dimension.
func (m *MockEmbedder) Dimension() int { return m.Dim }

// Model returns a fixed identifier.
func (m *MockEmbedder) Model() string { return "mock-embedder" }

// Close is a no-op.
func (m *MockEmbedder) Close() error { return nil }

var _ Embedder = (*MockEmbedder)(nil)
