package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/visualiza/backend/internal/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLParser extracts the first <table> of an HTML document.
type HTMLParser struct{}

func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

func (p *HTMLParser) Name() string {
	return "html"
}

func (p *HTMLParser) Extensions() []string {
	return []string{"html"}
}

type htmlCell struct {
	text   string
	header bool
	span   int
}

func (p *HTMLParser) Parse(ctx context.Context, data []byte, opts Options) (*models.Table, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	tableNode := findFirst(doc, atom.Table)
	if tableNode == nil {
		return nil, errors.New("no tables found")
	}

	var rows [][]htmlCell
	var headRows int
	collectRows(tableNode, &rows, &headRows, false)
	if len(rows) == 0 {
		return nil, errors.New("table has no rows")
	}

	expanded := make([][]string, len(rows))
	allHeader := make([]bool, len(rows))
	for i, r := range rows {
		allHeader[i] = len(r) > 0
		for _, c := range r {
			for s := 0; s < c.span; s++ {
				expanded[i] = append(expanded[i], c.text)
			}
			if !c.header {
				allHeader[i] = false
			}
		}
	}

	// Header rows: explicit <thead> rows, otherwise a leading row of <th> cells.
	if headRows == 0 && allHeader[0] {
		headRows = 1
	}

	width := 0
	for _, r := range expanded {
		if len(r) > width {
			width = len(r)
		}
	}

	var header []string
	if headRows > 0 {
		header = expanded[headRows-1]
		for len(header) < width {
			header = append(header, "")
		}
	} else {
		header = positionalColumns(width)
	}

	return buildTable(opts.TableName, header, expanded[headRows:])
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// collectRows walks a table without descending into nested tables.
func collectRows(n *html.Node, rows *[][]htmlCell, headRows *int, inHead bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Thead:
			collectRows(c, rows, headRows, true)
		case atom.Tbody, atom.Tfoot:
			collectRows(c, rows, headRows, false)
		case atom.Tr:
			var row []htmlCell
			for td := c.FirstChild; td != nil; td = td.NextSibling {
				if td.Type != html.ElementNode || (td.DataAtom != atom.Td && td.DataAtom != atom.Th) {
					continue
				}
				row = append(row, htmlCell{
					text:   strings.Join(strings.Fields(textContent(td)), " "),
					header: td.DataAtom == atom.Th,
					span:   colspan(td),
				})
			}
			*rows = append(*rows, row)
			if inHead {
				*headRows = len(*rows)
			}
		}
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return b.String()
}

func colspan(n *html.Node) int {
	for _, a := range n.Attr {
		if a.Key == "colspan" {
			if v, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil && v > 0 && v <= 1000 {
				return v
			}
		}
	}
	return 1
}
