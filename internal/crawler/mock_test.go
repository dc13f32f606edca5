package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/harvester/internal/product"
	"sjsage522/harvester/internal/render"
	"sjsage522/harvester/internal/site"
	"sjsage522/harvester/internal/store"
	"sjsage522/harvester/services/publisher"
)

const testCatalog = `
sites:
  - id: shop
    name: Shop
    base_url: https://shop.example
    categories:
      - {label: protein, path: /c/protein}
      - {label: creatine, path: "/search?q=creatine"}
    selectors:
      container: .item
      link: a.link
      image: img
      name_attr: alt
      price: .price
    demo:
      - {name: Demo Whey 2kg, price: "Rs. 100", rating: "4.5", link: "https://shop.example/p/demo-1"}
      - {name: Demo Caps 60 Capsules, price: "", rating: "", link: "https://shop.example/p/demo-2"}
      - {name: "  ", price: "Rs. 5", rating: "4", link: "https://shop.example/p/demo-3"}
  - id: other
    name: Other
    base_url: https://other.example
    categories:
      - {label: all, path: /all}
    selectors:
      container: .card
      link: a
    demo:
      - {name: Other Jar, price: "1", rating: "1", link: "https://other.example/p/1"}
`

func item(link, name, price string) string {
	var b strings.Builder
	b.WriteString(`<div class="item">`)
	if link != "" {
		fmt.Fprintf(&b, `<a class="link" href="%s"><img src="x.jpg" alt="%s"></a>`, link, name)
	} else {
		fmt.Fprintf(&b, `<img src="x.jpg" alt="%s">`, name)
	}
	if price != "" {
		fmt.Fprintf(&b, `<span class="price">%s</span>`, price)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func page(items ...string) string {
	return "<html><body>" + strings.Join(items, "\n") + "</body></html>"
}

// MockRenderer serves canned pages by URL
type MockRenderer struct {
	pages     map[string]string
	errs      map[string]error
	navigated []string
	doc       *render.Document
	closed    bool
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{pages: map[string]string{}, errs: map[string]error{}}
}

func (m *MockRenderer) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	m.navigated = append(m.navigated, url)
	m.doc = nil
	if err, ok := m.errs[url]; ok {
		return err
	}
	html, ok := m.pages[url]
	if !ok {
		html = "<html><body></body></html>"
	}
	doc, err := render.ParseString(html)
	if err != nil {
		return err
	}
	m.doc = doc
	return nil
}

func (m *MockRenderer) FindAll(selector string) ([]render.Element, error) {
	if m.doc == nil {
		return nil, errors.New("no page")
	}
	return m.doc.FindAll(selector), nil
}

func (m *MockRenderer) Close() error {
	m.closed = true
	return nil
}

var _ render.Renderer = (*MockRenderer)(nil)

// MockProber returns fixed answers per site id
type MockProber struct {
	up    map[string]bool
	calls int
}

func (m *MockProber) Probe(ctx context.Context, def site.Definition) bool {
	m.calls++
	return m.up[def.ID]
}

// MockPublisher records published messages
type MockPublisher struct {
	messages  map[string][][]byte
	err       error
	onPublish func()
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: map[string][][]byte{}}
}

func (m *MockPublisher) Publish(key string, message []byte) error {
	if m.onPublish != nil {
		m.onPublish()
	}
	if m.err != nil {
		return m.err
	}
	m.messages[key] = append(m.messages[key], message)
	return nil
}

func (m *MockPublisher) TrimStreams() error { return nil }

func (m *MockPublisher) Close() error { return nil }

var _ publisher.Publisher = (*MockPublisher)(nil)

// FailingStore wraps a store and fails selected operations
type FailingStore struct {
	store.Store
	linksErr  error
	insertErr error
}

func (f *FailingStore) Links(ctx context.Context, website string) (map[string]struct{}, error) {
	if f.linksErr != nil {
		return nil, f.linksErr
	}
	return f.Store.Links(ctx, website)
}

func (f *FailingStore) Insert(ctx context.Context, rec *product.Record) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	return f.Store.Insert(ctx, rec)
}
