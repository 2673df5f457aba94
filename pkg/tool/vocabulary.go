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

import "strings"

// domainVocabulary is the built-in algorithms-and-data-structures
// vocabulary used for concept coverage and the heuristic extractor.
// English and Russian terms; the service is Russian-facing.
var domainVocabulary = []string{
	// algorithms
	"binary search", "quicksort", "mergesort", "heapsort", "bubble sort",
	"insertion sort", "selection sort", "dijkstra", "bellman-ford",
	"floyd-warshall", "kruskal", "prim", "bfs", "dfs", "topological sort",
	"dynamic programming", "memoization", "greedy", "backtracking",
	"divide and conquer", "two pointers", "sliding window", "binary lifting",
	"union find", "kmp", "rabin-karp",
	// data structures
	"array", "linked list", "stack", "queue", "deque", "hash table",
	"hash map", "binary tree", "binary search tree", "avl tree",
	"red-black tree", "b-tree", "heap", "priority queue", "trie",
	"segment tree", "fenwick tree", "graph", "adjacency list",
	"adjacency matrix", "disjoint set",
	// complexity
	"big o", "time complexity", "space complexity", "amortized",
	"logarithmic", "asymptotic",
	// russian
	"бинарный поиск", "быстрая сортировка", "сортировка слиянием",
	"сортировка кучей", "пузырьковая сортировка", "динамическое программирование",
	"жадный алгоритм", "поиск в ширину", "поиск в глубину", "хеш-таблица",
	"связный список", "стек", "очередь", "куча", "дерево отрезков",
	"граф", "дерево", "рекурсия", "сложность алгоритма", "асимптотика",
	"топологическая сортировка", "система непересекающихся множеств",
}

// vocabularyTermsIn returns the vocabulary terms present in the text,
// case-insensitively, preserving vocabulary order.
func vocabularyTermsIn(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, term := range domainVocabulary {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}
	return found
}
