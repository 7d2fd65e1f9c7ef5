// Package docs renders the embedded AsciiDoc pages (how to play, contract
// reference) to HTML fragments for the web UI.
package docs

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

//go:embed content/*.adoc
var content embed.FS

// HowToPlay is the page linked from the game header.
const HowToPlay = "how-to-play.adoc"

type Service struct {
	fsys  fs.FS
	cache map[string]string // filename -> html content
	mu    sync.RWMutex
}

// NewService serves pages from fsys. A nil fsys selects the embedded pages.
func NewService(fsys fs.FS) *Service {
	if fsys == nil {
		sub, err := fs.Sub(content, "content")
		if err != nil {
			panic(err)
		}
		fsys = sub
	}
	return &Service{
		fsys:  fsys,
		cache: make(map[string]string),
	}
}

func (s *Service) GetDoc(ctx context.Context, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	filename = path.Clean(filename)
	if !strings.HasSuffix(filename, ".adoc") || !fs.ValidPath(filename) {
		return "", fmt.Errorf("invalid doc name %q", filename)
	}

	s.mu.RLock()
	html, ok := s.cache[filename]
	s.mu.RUnlock()
	if ok {
		return html, nil
	}

	data, err := fs.ReadFile(s.fsys, filename)
	if err != nil {
		return "", fmt.Errorf("failed to read doc file: %w", err)
	}

	output := bytes.NewBuffer(nil)
	config := configuration.NewConfiguration(
		configuration.WithHeaderFooter(false), // embedded in the page layout
		configuration.WithAttribute("toc", "left"),
	)
	if _, err := libasciidoc.Convert(bytes.NewReader(data), output, config); err != nil {
		return "", fmt.Errorf("failed to convert asciidoc: %w", err)
	}
	html = output.String()

	s.mu.Lock()
	s.cache[filename] = html
	s.mu.Unlock()

	return html, nil
}

func (s *Service) ListDocs() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, err
	}

	var docs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".adoc") {
			docs = append(docs, entry.Name())
		}
	}
	sort.Strings(docs)
	return docs, nil
}
