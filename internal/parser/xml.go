package parser

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/visualiza/backend/internal/models"
)

// XMLParser reads flat XML documents: every child of the root element is a
// row, its attributes and child elements are the columns.
type XMLParser struct{}

func NewXMLParser() *XMLParser {
	return &XMLParser{}
}

func (p *XMLParser) Name() string {
	return "xml"
}

func (p *XMLParser) Extensions() []string {
	return []string{"xml"}
}

// xmlRow collects the fields of one row element in document order.
type xmlRow struct {
	keys   []string
	values map[string]string
}

func (r *xmlRow) set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (p *XMLParser) Parse(ctx context.Context, data []byte, opts Options) (*models.Table, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		// Latin-1 and friends are passed through; only byte-compatible charsets are expected.
		return input, nil
	}

	var rows []*xmlRow
	var current *xmlRow
	var field string
	var text strings.Builder
	depth := 0
	sawRoot := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				sawRoot = true
			case 2:
				current = &xmlRow{values: make(map[string]string)}
				for _, a := range t.Attr {
					current.set(a.Name.Local, a.Value)
				}
				text.Reset()
			case 3:
				field = t.Name.Local
				for _, a := range t.Attr {
					current.set(a.Name.Local, a.Value)
				}
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 || depth == 3 {
				text.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 3:
				current.set(field, strings.TrimSpace(text.String()))
				text.Reset()
			case 2:
				if s := strings.TrimSpace(text.String()); s != "" {
					current.set(t.Name.Local, s)
				}
				rows = append(rows, current)
				current = nil
			}
			depth--
		}
	}

	if !sawRoot {
		return nil, errors.New("document has no root element")
	}
	if len(rows) == 0 {
		return nil, errors.New("xpath ./* does not return any nodes; the root element has no children")
	}

	var header []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, k := range r.keys {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}

	records := make([][]string, len(rows))
	for i, r := range rows {
		rec := make([]string, len(header))
		for c, k := range header {
			rec[c] = r.values[k]
		}
		records[i] = rec
	}
	return buildTable(opts.TableName, header, records)
}
