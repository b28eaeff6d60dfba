package parser

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps file extensions to parsers.
type Registry struct {
	byExt   map[string]Parser
	parsers []Parser
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns a registry holding every built-in reader.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	r.Register(NewCSVParser())
	r.Register(NewJSONParser())
	r.Register(NewXMLParser())
	r.Register(NewHTMLParser())
	r.Register(NewSpreadsheetParser())
	return r
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a parser. Later registrations win for shared extensions.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// FindParser returns the parser registered for an extension.
func (r *Registry) FindParser(ext string) (Parser, error) {
	p, ok := r.byExt[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("no parser registered for extension %q", ext)
	}
	return p, nil
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (Parser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parser not found: %s", name)
}

// Extensions returns the supported extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
