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

package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MockProvider is an in-memory Provider for tests. It does real cosine
// ranking over stored vectors, exact-match filtering, and preserves
// insertion order for equal scores. Set FailWith to simulate a
// degraded backend.
type MockProvider struct {
	mu       sync.Mutex
	points   map[string][]mockPoint // by collection, insertion-ordered
	FailWith error
}

type mockPoint struct {
	id       string
	vector   []float32
	metadata map[string]any
}

// NewMockProvider creates an empty in-memory provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{points: make(map[string][]mockPoint)}
}

// Name returns "mock".
func (m *MockProvider) Name() string { return "mock" }

// Upsert stores the point, replacing an existing ID in place.
func (m *MockProvider) Upsert(ctx context.Context, collection string, id string, vec []float32, metadata map[string]any) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make(map[string]any, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}
	pt := mockPoint{id: id, vector: vec, metadata: copied}

	pts := m.points[collection]
	for i := range pts {
		if pts[i].id == id {
			pts[i] = pt
			return nil
		}
	}
	m.points[collection] = append(pts, pt)
	return nil
}

// Search returns the topK most similar points.
func (m *MockProvider) Search(ctx context.Context, collection string, vec []float32, topK int) ([]Result, error) {
	return m.SearchWithFilter(ctx, collection, vec, topK, nil)
}

// SearchWithFilter ranks by cosine similarity after exact-match
// filtering. Stable for equal scores.
func (m *MockProvider) SearchWithFilter(ctx context.Context, collection string, vec []float32, topK int, filter map[string]any) ([]Result, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []Result
	for _, pt := range m.points[collection] {
		if !matchesFilter(pt.metadata, filter) {
			continue
		}
		content, _ := pt.metadata["content"].(string)
		results = append(results, Result{
			ID:       pt.id,
			Content:  content,
			Score:    cosine(vec, pt.vector),
			Vector:   pt.vector,
			Metadata: pt.metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes a point by ID.
func (m *MockProvider) Delete(ctx context.Context, collection string, id string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pts := m.points[collection]
	for i := range pts {
		if pts[i].id == id {
			m.points[collection] = append(pts[:i], pts[i+1:]...)
			return nil
		}
	}
	return nil
}

// DeleteByFilter removes every matching point.
func (m *MockProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []mockPoint
	for _, pt := range m.points[collection] {
		if !matchesFilter(pt.metadata, filter) {
			kept = append(kept, pt)
		}
	}
	m.points[collection] = kept
	return nil
}

// CreateCollection is a no-op; collections are implicit.
func (m *MockProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	return nil
}

// Close is a no-op.
func (m *MockProvider) Close() error { return nil }

// Count returns the number of points in a collection.
func (m *MockProvider) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points[collection])
}

func matchesFilter(metadata map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ Provider = (*MockProvider)(nil)
