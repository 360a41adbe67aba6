package parser

import (
	"fmt"
	"strings"

	"github.com/image-inspector/backend/internal/models"
)

// Registry maps format tags to the parser that handles them.
type Registry struct {
	parsers  map[models.ImageFormat]Parser
	fallback Parser
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns a registry with the PCX, TIFF and generic decoder
// parsers registered.
func NewRegistry() *Registry {
	generic := NewGenericParser()
	r := &Registry{
		parsers:  make(map[models.ImageFormat]Parser),
		fallback: generic,
	}
	r.Register(NewPCXParser())
	r.Register(NewTIFFParser())
	r.Register(generic)
	return r
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a parser for every format it declares, replacing any
// parser previously registered for those formats.
func (r *Registry) Register(p Parser) {
	for _, f := range p.Formats() {
		r.parsers[f] = p
	}
}

// Sniff determines the format of a file.
func (r *Registry) Sniff(filePath string) models.ImageFormat {
	return Sniff(filePath)
}

// ParserFor returns the parser registered for format, or the generic
// decoder parser when none is.
func (r *Registry) ParserFor(format models.ImageFormat) Parser {
	if p, ok := r.parsers[format]; ok {
		return p
	}
	return r.fallback
}

// Parse sniffs the file and runs the matching parser.
func (r *Registry) Parse(filePath string) (models.ImageFormat, Result) {
	format := r.Sniff(filePath)
	return format, r.ParserFor(format).Parse(filePath, format)
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
