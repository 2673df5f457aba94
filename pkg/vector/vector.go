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

// Package vector abstracts the similarity stores behind a single
// Provider interface. Two backends are supported: Qdrant over gRPC for
// deployments with an external database, and chromem-go for embedded
// zero-config runs. Vectors are always computed externally; providers
// only store and search them.
package vector

import "context"

// Result is one similarity hit.
type Result struct {
	ID       string
	Content  string
	Score    float32
	Vector   []float32
	Metadata map[string]any
}

// Provider is a vector store backend.
type Provider interface {
	// Name returns the backend identifier.
	Name() string

	// Upsert adds or replaces a point with a pre-computed vector.
	// Content travels in metadata under the "content" key.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK most similar points.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter combines similarity with exact-match metadata
	// filtering.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a point by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes every point matching the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection ensures the collection exists with the given
	// dimension. Idempotent.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// Close releases backend resources.
	Close() error
}
