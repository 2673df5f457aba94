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

package tot

// fallbackAction is the depth-indexed rule used when the reasoning
// chain cannot propose anything: retrieve first, verify what was
// retrieved, widen to the web, then distill concepts.
func fallbackAction(current *TreeNode, query string) (string, map[string]any) {
	switch current.Depth {
	case 0:
		return "adaptive_rag_search", map[string]any{"query": query}
	case 1:
		return "corrective_check", map[string]any{
			"query":     query,
			"documents": current.Collected,
		}
	case 2:
		return "web_search", map[string]any{"query": query, "scrape_content": true}
	default:
		return "concept_extractor", map[string]any{"text": collectedText(current, query)}
	}
}

// collectedText feeds the extractor the latest evidence, or the query
// itself when there is none.
func collectedText(current *TreeNode, query string) string {
	if len(current.Collected) == 0 {
		return query
	}
	last := current.Collected[len(current.Collected)-1]
	return truncateRunes(last.Content, 2000)
}
