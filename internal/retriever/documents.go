package retriever

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one entry of the knowledge base.
type Document struct {
	ID       string         `yaml:"id"`
	Title    string         `yaml:"title"`
	Content  string         `yaml:"content"`
	Metadata map[string]any `yaml:"metadata"`
}

type documentsFile struct {
	Documents []Document `yaml:"documents"`
}

// LoadDocuments reads a YAML documents file.
func LoadDocuments(path string) ([]Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read documents %s: %w", path, err)
	}
	return ParseDocuments(b)
}

// ParseDocuments decodes `documents: [{id, title, content, metadata}]`.
// Ids must be present and unique.
func ParseDocuments(data []byte) ([]Document, error) {
	var f documentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Documents))
	for i := range f.Documents {
		d := &f.Documents[i]
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("document %d: id is required", i)
		}
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("document %q: duplicate id", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return f.Documents, nil
}
