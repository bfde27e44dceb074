// Package parser is the document-input boundary: format-specific parsers
// produce the normalized RawBook the pipeline consumes. The registry picks
// the first parser that recognizes a file and reports distinguishable
// conditions for missing files and unsupported formats.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/librotran/librotran/internal/book"
)

// ErrUnsupportedFormat is returned when no registered parser can handle the
// file's format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ErrNotFound is returned when the input file does not exist.
var ErrNotFound = errors.New("file not found")

// Parser is the capability a format-specific parser implements.
type Parser interface {
	CanHandle(path string) bool
	Parse(path string) (book.RawBook, error)
	Extensions() []string
}

// Registry evaluates parsers in registration order; the first one that
// answers CanHandle wins.
type Registry struct {
	parsers []Parser
	lang    *LanguageDetector
}

// NewRegistry returns a registry with the default parsers installed. The txt
// parser goes last because plain text is the most permissive fallback.
func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{NewTxtParser()},
	}
}

// Register adds a parser ahead of the defaults.
func (r *Registry) Register(p Parser) {
	r.parsers = append([]Parser{p}, r.parsers...)
}

// WithLanguageDetection makes Parse fill RawBook.DetectedLanguage. The
// detector is expensive to build, so it is attached once and reused.
func (r *Registry) WithLanguageDetection(d *LanguageDetector) *Registry {
	r.lang = d
	return r
}

// Parse resolves the right parser for the file and returns the normalized
// document.
func (r *Registry) Parse(path string) (book.RawBook, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return book.RawBook{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	for _, p := range r.parsers {
		if !p.CanHandle(path) {
			continue
		}
		raw, err := p.Parse(path)
		if err != nil {
			return book.RawBook{}, err
		}
		if r.lang != nil && raw.DetectedLanguage == "" && len(raw.Sections) > 0 {
			if code, ok := r.lang.DetectISO(raw.Sections[0]); ok {
				raw.DetectedLanguage = code
			}
		}
		return raw, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	return book.RawBook{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, r.supportedExtensions())
}

func (r *Registry) supportedExtensions() string {
	set := map[string]struct{}{}
	for _, p := range r.parsers {
		for _, ext := range p.Extensions() {
			set[ext] = struct{}{}
		}
	}
	exts := make([]string, 0, len(set))
	for ext := range set {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
