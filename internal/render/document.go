package render

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed page snapshot
type Document struct {
	doc *goquery.Document
}

// Parse parses an HTML document
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an HTML document held in a string
func ParseString(html string) (*Document, error) {
	return Parse(strings.NewReader(html))
}

// FindAll returns every element matching selector in document order
func (d *Document) FindAll(selector string) []Element {
	var out []Element
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, node{sel: s})
	})
	return out
}

// node adapts a single-element goquery selection to Element
type node struct {
	sel *goquery.Selection
}

func (n node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n node) Text() string {
	return strings.Join(strings.Fields(n.sel.Text()), " ")
}

func (n node) Find(selector string) (Element, bool) {
	if selector == "" {
		return nil, false
	}
	s := n.sel.Find(selector).First()
	if s.Length() == 0 {
		return nil, false
	}
	return node{sel: s}, true
}
