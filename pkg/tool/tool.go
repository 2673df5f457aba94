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

// Package tool implements the retrieval and analysis tools the search
// orchestrator plans with, behind a single contract: a tool never
// returns a Go error from Execute, every failure is encoded in the
// Result so a bad tool call degrades one search branch instead of
// aborting the search.
package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
)

// Result is the uniform tool outcome.
type Result struct {
	Success   bool                 `json:"success"`
	Documents []document.Document  `json:"documents,omitempty"`
	Error     string               `json:"error,omitempty"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
	Duration  time.Duration        `json:"execution_time"`
}

// Tool is one callable capability.
type Tool interface {
	// Name returns the canonical tool name.
	Name() string

	// Description returns a one-line description for the planning
	// prompt's tool catalog.
	Description() string

	// Parameters returns the JSON schema of the accepted params.
	Parameters() map[string]any

	// Execute runs the tool. It must not panic and must not return a
	// Go error; failures are encoded in the Result.
	Execute(ctx context.Context, params map[string]any) *Result
}

// Failure builds a failed result.
func Failure(errMsg string, start time.Time) *Result {
	return &Result{
		Success:  false,
		Error:    errMsg,
		Metadata: map[string]any{},
		Duration: time.Since(start),
	}
}

// Successful builds a successful result.
func Successful(docs []document.Document, metadata map[string]any, start time.Time) *Result {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Result{
		Success:   true,
		Documents: docs,
		Metadata:  metadata,
		Duration:  time.Since(start),
	}
}

// decodeParams decodes the free-form param map into a typed struct.
// Weakly typed so JSON-ish inputs ("5" for an int, float64 for an int)
// decode cleanly.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

// schemaFor reflects a typed params struct into a plain JSON-schema
// map for the tool catalog.
func schemaFor(v any) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
