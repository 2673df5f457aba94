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

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
)

var (
	htmlTag = regexp.MustCompile(`<[^>]*>`)

	// shorteners and direct executable downloads
	suspiciousURL = regexp.MustCompile(
		`https?://(?:[a-zA-Z0-9.-]*(?:bit\.ly|tinyurl\.com|goo\.gl|t\.co|clck\.ru)[^\s]*|[^\s]+\.(?:exe|msi|bat|scr|apk)(?:[?#][^\s]*)?)`)

	emailAddress = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// sanitizeStage cleans every document in place: HTML strip for
// web-sourced docs only, suspicious URL and email removal, whitespace
// collapse, truncation. It never drops documents; Sanitized is set on
// every document the stage actually changed.
func (g *Guard) sanitizeStage(docs []document.CleanDocument) []document.CleanDocument {
	out := make([]document.CleanDocument, len(docs))
	for i, doc := range docs {
		content := doc.Content
		if doc.IsWebSourced() {
			content = htmlTag.ReplaceAllString(content, " ")
		}
		content = suspiciousURL.ReplaceAllString(content, "")
		content = emailAddress.ReplaceAllString(content, "")
		content = strings.Join(strings.Fields(content), " ")
		if g.cfg.SanitizeMaxLength > 0 {
			content = truncateRunes(content, g.cfg.SanitizeMaxLength)
		}
		doc.Sanitized = content != doc.Content
		doc.Content = content
		out[i] = doc
	}
	return out
}
