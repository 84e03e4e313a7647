package models

type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Source returns the corpus file or page the document came from.
func (d Document) Source() string {
	if src, ok := d.Metadata["source"].(string); ok && src != "" {
		return src
	}
	if d.URL != "" {
		return d.URL
	}
	return "unknown.txt"
}

type ProcessedDocument struct {
	Document
	Chunks    []string
	Embedding [][]float32
}

// SearchResult is a stored chunk returned by a similarity query.
type SearchResult struct {
	Document
	Score float64
}
