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

package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry resolves tool names and aliases to lazily constructed
// singletons. Registration happens once at startup; after that the
// registry is read-only and safe for concurrent Get calls.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]func() Tool
	aliases      map[string]string
	instances    map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]func() Tool),
		aliases:      make(map[string]string),
		instances:    make(map[string]Tool),
	}
}

// Register adds a tool constructor under its canonical name.
func (r *Registry) Register(name string, constructor func() Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = constructor
}

// Alias maps an alternative name to a canonical one.
func (r *Registry) Alias(alias, canonical string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = canonical
}

// Get resolves a name or alias to the tool singleton, constructing it
// on first use. Returns nil for unknown names.
func (r *Registry) Get(name string) Tool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	if t, ok := r.instances[name]; ok {
		return t
	}
	constructor, ok := r.constructors[name]
	if !ok {
		return nil
	}
	t := constructor()
	r.instances[name] = t
	return t
}

// Names returns the canonical tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteTool resolves and runs a tool in one step. An unknown name
// yields a failed Result, not an error, matching the tool contract.
func (r *Registry) ExecuteTool(ctx context.Context, name string, params map[string]any) *Result {
	start := time.Now()
	t := r.Get(name)
	if t == nil {
		return Failure(fmt.Sprintf("tool_execution: unknown tool %q", name), start)
	}
	return t.Execute(ctx, params)
}
