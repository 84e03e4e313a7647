package rag

import (
	"fmt"
	"strings"

	"github.com/xhad/medilex/internal/models"
)

const (
	NoResultsMessage = "No relevant documents found in knowledge base."
	resultsHeader    = "Here's what I found:\n\n"
)

// FormatAnswer lists retrieved passages as a numbered, source-tagged answer.
func FormatAnswer(results []models.SearchResult) string {
	if len(results) == 0 {
		return NoResultsMessage
	}

	var b strings.Builder
	b.WriteString(resultsHeader)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. (%s) %s\n\n", i+1, r.Source(), snippet(r.Content))
	}
	return b.String()
}

func snippet(content string) string {
	return strings.ReplaceAll(strings.TrimSpace(content), "\n", " ")
}

// Sources returns the distinct sources of results in rank order.
func Sources(results []models.SearchResult) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, r := range results {
		src := r.Source()
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}
