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

package guard

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
)

// maxURLCharRatio drops documents that are mostly links.
const maxURLCharRatio = 0.3

var anyURL = regexp.MustCompile(`https?://[^\s]+`)

// qualityStage enforces length bounds, a minimum sentence count, and
// the URL-character ratio. Survivors have passed every stage, so it
// also sets the final ContentGuarded verdict.
func (g *Guard) qualityStage(docs []document.CleanDocument) []document.CleanDocument {
	kept := make([]document.CleanDocument, 0, len(docs))
	for _, doc := range docs {
		if g.passesQuality(doc.Content) {
			doc.QualityPassed = true
			doc.ContentGuarded = true
			kept = append(kept, doc)
		}
	}
	return kept
}

func (g *Guard) passesQuality(content string) bool {
	length := utf8.RuneCountInString(content)
	if length < g.cfg.MinLength || length > g.cfg.MaxLength {
		return false
	}
	if sentenceCount(content) < g.cfg.MinSentences {
		return false
	}

	urlChars := 0
	for _, match := range anyURL.FindAllString(content, -1) {
		urlChars += utf8.RuneCountInString(match)
	}
	return float64(urlChars)/float64(length) < maxURLCharRatio
}

func sentenceCount(content string) int {
	count := 0
	for _, part := range strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}
