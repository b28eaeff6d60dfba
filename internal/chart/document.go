package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a saved interaction: the selected charts and the failure
// policy of the pass. JSON documents are accepted as well since JSON is YAML.
//
//	policy: isolate
//	charts:
//	  - kind: bar
//	    x: region
//	    y: units
//	    color: region
//	  - kind: table
//	    rows: 10
type Document struct {
	Policy FailurePolicy `json:"policy,omitempty" yaml:"policy,omitempty"`
	Charts []Request     `json:"charts" yaml:"charts"`
}

// ParseDocument reads a chart document. Unknown fields are rejected.
func ParseDocument(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, configErr("", "", "chart document is empty")
		}
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid chart document: %v", err)}
	}
	if doc.Policy == "" {
		doc.Policy = Isolate
	}
	if len(doc.Charts) == 0 {
		return nil, configErr("", "charts", "at least one chart must be selected")
	}
	return &doc, nil
}

// LoadDocument reads a chart document from disk.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart document: %w", err)
	}
	return ParseDocument(data)
}

// Marshal writes the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// ParseRequest reads a single chart request (YAML or JSON).
func ParseRequest(data []byte) (Request, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var req Request
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return Request{}, configErr("", "", "chart request is empty")
		}
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			return Request{}, ce
		}
		return Request{}, &ConfigurationError{Reason: fmt.Sprintf("invalid chart request: %v", err)}
	}
	if req.Kind == "" {
		return Request{}, configErr("", "kind", "chart kind is required")
	}
	return req, nil
}
