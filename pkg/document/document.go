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

// Package document defines the Document record exchanged between tools,
// the content guard and the reasoning tree.
package document

import "strings"

// dedupKeyLen is the number of leading characters (runes) used for
// equality and dedup. Cheap enough to run on every retrieved chunk
// without an embedding lookup.
const dedupKeyLen = 100

// Document is a retrieved or processed text chunk.
type Document struct {
	// Content is the chunk text.
	Content string `json:"content"`

	// Source identifies where the chunk came from: a corpus chunk id,
	// a URL, or a memory pattern id.
	Source string `json:"source"`

	// Metadata carries arbitrary tool-specific key/value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`

	// RelevanceScore in [0,1], assigned by the producing tool or by
	// the corrective filter.
	RelevanceScore float64 `json:"relevance_score"`
}

// New creates a document with an empty metadata map.
func New(content, source string) Document {
	return Document{
		Content:  content,
		Source:   source,
		Metadata: make(map[string]any),
	}
}

// Key returns the dedup identity of the document: the first 100 runes
// of its content. Two documents with equal keys are considered the
// same chunk.
func (d Document) Key() string {
	runes := []rune(d.Content)
	if len(runes) <= dedupKeyLen {
		return d.Content
	}
	return string(runes[:dedupKeyLen])
}

// Equal reports whether two documents are the same chunk under the
// dedup rule.
func (d Document) Equal(other Document) bool {
	return d.Key() == other.Key()
}

// Meta returns a metadata value as a string, or "" when absent.
func (d Document) Meta(key string) string {
	if d.Metadata == nil {
		return ""
	}
	if v, ok := d.Metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IsWebSourced reports whether the document came from the open web
// (scraper or search snippets). The sanitize stage strips HTML only
// for these documents.
func (d Document) IsWebSourced() bool {
	if strings.HasPrefix(d.Source, "http://") || strings.HasPrefix(d.Source, "https://") {
		return true
	}
	origin := d.Meta("origin")
	return origin == "web_search" || origin == "web_scraper"
}

// Dedup returns documents with duplicate keys removed, preserving the
// first occurrence order.
func Dedup(docs []Document) []Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		key := d.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

// CleanDocument is a document that has been through the content guard,
// together with the verdicts of each stage.
type CleanDocument struct {
	Document

	// ContentGuarded is true only when the document passed all four
	// guard stages.
	ContentGuarded  bool    `json:"content_guarded"`
	PolicyCompliant bool    `json:"policy_compliant"`
	Sanitized       bool    `json:"sanitized"`
	QualityPassed   bool    `json:"quality_passed"`
	ToxicityScore   float64 `json:"toxicity_score"`
}
