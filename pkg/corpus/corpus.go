// Package corpus loads the plain-text medical knowledge base from disk.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/medilex/internal/models"
)

// namespace for deterministic document IDs derived from file paths
var docNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("medilex/corpus"))

// LoadDir reads every .txt file directly inside dir, in name order.
func LoadDir(dir string) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	docs := make([]models.Document, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadFile reads a single text file as a Document.
func LoadFile(path string) (models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return models.Document{
		ID:      DocumentID(path),
		URL:     "file://" + filepath.ToSlash(path),
		Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content: string(data),
		Metadata: map[string]interface{}{
			"source": path,
		},
	}, nil
}

// DocumentID is stable for a given path so re-ingesting a file overwrites its chunks.
func DocumentID(path string) string {
	return uuid.NewSHA1(docNamespace, []byte(filepath.ToSlash(path))).String()
}
