// Package storage writes the run's debug artifacts. Files are overwritten on
// every run and written atomically so a crashed run never leaves half a dump.
package storage

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	SampleProductFile = "sample_product.html"
	DiagnosticFile    = "diagnostic_add_button_dump.html"
)

// DiagnosticEntry is one "add to cart" text match found by the visual
// fallback, with the product it was geometrically assigned to.
type DiagnosticEntry struct {
	Index        int
	InferredASIN string
	Allowed      bool
	HTML         string
}

type ArtifactStore struct {
	mu  sync.Mutex
	dir string
}

func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

func (s *ArtifactStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// SaveSampleProduct stores the outerHTML of the first scraped result
// container.
func (s *ArtifactStore) SaveSampleProduct(outerHTML string) (string, error) {
	return s.write(SampleProductFile, []byte(outerHTML))
}

func (s *ArtifactStore) SaveDiagnostic(entries []DiagnosticEntry) (string, error) {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	fmt.Fprintf(&b, "<h1>add to cart matches: %d</h1>\n", len(entries))
	for _, e := range entries {
		asin := e.InferredASIN
		if asin == "" {
			asin = "unknown"
		}
		fmt.Fprintf(&b, "<hr>\n<h3>match %d: inferred ASIN %s (allowed: %t)</h3>\n",
			e.Index, html.EscapeString(asin), e.Allowed)
		fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(e.HTML))
	}
	b.WriteString("</body></html>\n")

	return s.write(DiagnosticFile, []byte(b.String()))
}

func (s *ArtifactStore) write(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(name)
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return path, nil
}
