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
	"compress/gzip"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// tfidfIndex is a character n-gram tf-idf index built offline over the
// same corpus as the semantic store. Read-only once loaded.
type tfidfIndex struct {
	NgramSize int                `json:"ngram_size"`
	IDF       map[string]float64 `json:"idf"`
	Docs      []tfidfDoc         `json:"docs"`
}

type tfidfDoc struct {
	Content  string             `json:"content"`
	Source   string             `json:"source"`
	Weights  map[string]float64 `json:"weights"`
	Norm     float64            `json:"norm"`
	Metadata map[string]string  `json:"metadata,omitempty"`
}

type tfidfHit struct {
	doc   tfidfDoc
	score float64
}

// loadTFIDFIndex reads a persisted index, gzip-decompressing when the
// path ends in .gz.
func loadTFIDFIndex(path string) (*tfidfIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tf-idf index: %w", err)
	}
	defer f.Close()

	var dec *json.Decoder
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress tf-idf index: %w", err)
		}
		defer gz.Close()
		dec = json.NewDecoder(gz)
	} else {
		dec = json.NewDecoder(f)
	}

	var idx tfidfIndex
	if err := dec.Decode(&idx); err != nil {
		return nil, fmt.Errorf("failed to parse tf-idf index: %w", err)
	}
	if idx.NgramSize == 0 {
		idx.NgramSize = 3
	}
	return &idx, nil
}

// search ranks the indexed documents by cosine similarity to the query.
func (idx *tfidfIndex) search(query string, k int) []tfidfHit {
	queryWeights := idx.vectorize(query)
	if len(queryWeights) == 0 {
		return nil
	}
	var queryNorm float64
	for _, w := range queryWeights {
		queryNorm += w * w
	}
	queryNorm = math.Sqrt(queryNorm)

	hits := make([]tfidfHit, 0, len(idx.Docs))
	for _, doc := range idx.Docs {
		if doc.Norm == 0 {
			continue
		}
		var dot float64
		for ngram, qw := range queryWeights {
			if dw, ok := doc.Weights[ngram]; ok {
				dot += qw * dw
			}
		}
		if dot == 0 {
			continue
		}
		hits = append(hits, tfidfHit{doc: doc, score: dot / (queryNorm * doc.Norm)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// vectorize computes tf-idf weights of the query's character n-grams.
func (idx *tfidfIndex) vectorize(text string) map[string]float64 {
	counts := make(map[string]float64)
	runes := []rune(strings.ToLower(text))
	n := idx.NgramSize
	if len(runes) < n {
		if len(runes) == 0 {
			return counts
		}
		counts[string(runes)]++
	} else {
		for i := 0; i+n <= len(runes); i++ {
			counts[string(runes[i:i+n])]++
		}
	}

	weights := make(map[string]float64, len(counts))
	for ngram, tf := range counts {
		idf, ok := idx.IDF[ngram]
		if !ok {
			continue
		}
		weights[ngram] = tf * idf
	}
	return weights
}

// buildTFIDFIndex constructs an index from raw texts. Used by tests
// and the offline corpus build.
func buildTFIDFIndex(ngramSize int, docs []tfidfDoc) *tfidfIndex {
	idx := &tfidfIndex{
		NgramSize: ngramSize,
		IDF:       make(map[string]float64),
		Docs:      make([]tfidfDoc, len(docs)),
	}

	counts := make([]map[string]float64, len(docs))
	docFreq := make(map[string]int)
	for i, doc := range docs {
		c := rawNgramCounts(doc.Content, ngramSize)
		counts[i] = c
		for ngram := range c {
			docFreq[ngram]++
		}
	}

	total := float64(len(docs))
	for ngram, df := range docFreq {
		idx.IDF[ngram] = math.Log((1+total)/(1+float64(df))) + 1
	}

	for i, doc := range docs {
		weights := make(map[string]float64, len(counts[i]))
		var norm float64
		for ngram, tf := range counts[i] {
			w := tf * idx.IDF[ngram]
			weights[ngram] = w
			norm += w * w
		}
		doc.Weights = weights
		doc.Norm = math.Sqrt(norm)
		idx.Docs[i] = doc
	}
	return idx
}

// save persists the index, gzip-compressing when the path ends in .gz.
func (idx *tfidfIndex) save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tf-idf index file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		if err := json.NewEncoder(gz).Encode(idx); err != nil {
			gz.Close()
			return fmt.Errorf("failed to write tf-idf index: %w", err)
		}
		return gz.Close()
	}
	if err := json.NewEncoder(f).Encode(idx); err != nil {
		return fmt.Errorf("failed to write tf-idf index: %w", err)
	}
	return nil
}

func rawNgramCounts(text string, n int) map[string]float64 {
	counts := make(map[string]float64)
	runes := []rune(strings.ToLower(text))
	if len(runes) == 0 {
		return counts
	}
	if len(runes) < n {
		counts[string(runes)]++
		return counts
	}
	for i := 0; i+n <= len(runes); i++ {
		counts[string(runes[i:i+n])]++
	}
	return counts
}
