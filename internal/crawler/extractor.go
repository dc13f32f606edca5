package crawler

import (
	"regexp"
	"strings"

	"sjsage522/harvester/helpers"
	"sjsage522/harvester/internal/product"
	"sjsage522/harvester/internal/quantity"
	"sjsage522/harvester/internal/render"
	"sjsage522/harvester/internal/site"
	herrors "sjsage522/harvester/pkg/errors"
)

var ratingNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Field is the outcome of one field lookup
type Field struct {
	Value string
	Found bool
}

func found(v string) Field {
	v = strings.TrimSpace(v)
	return Field{Value: v, Found: v != ""}
}

// Or returns the value, or sentinel when the field was not found
func (f Field) Or(sentinel string) string {
	if !f.Found {
		return sentinel
	}
	return f.Value
}

// Extractor turns product containers into records using a site's selectors
type Extractor struct {
	def site.Definition
}

// NewExtractor creates an extractor for def
func NewExtractor(def site.Definition) *Extractor {
	return &Extractor{def: def}
}

// Extract builds a record from one container. Every field except the link
// falls back to its sentinel; a container without a link is unusable.
// Category and Page are left for the caller.
func (e *Extractor) Extract(el render.Element) (product.Record, error) {
	link := e.Link(el)
	if !link.Found {
		return product.Record{}, herrors.NewUnusable(e.def.ID, "container has no product link")
	}

	name := e.Name(el).Or(product.UnknownName)
	return product.Record{
		Name:     name,
		Price:    e.Price(el).Or(product.PriceUnavailable),
		Rating:   e.Rating(el).Or(product.NoRating),
		Website:  e.def.Name,
		Link:     link.Value,
		Quantity: quantity.Normalize(name),
	}, nil
}

// Link tries the site's link selector, then any anchor in the container
func (e *Extractor) Link(el render.Element) Field {
	for _, selector := range []string{e.def.Selectors.Link, "a[href]"} {
		a, ok := el.Find(selector)
		if !ok {
			continue
		}
		href, _ := a.Attr("href")
		if resolved := helpers.ResolveURL(e.def.BaseURL, href); resolved != "" {
			return Field{Value: resolved, Found: true}
		}
	}
	return Field{}
}

// Name tries the site's title selector, then the image's name attribute
func (e *Extractor) Name(el render.Element) Field {
	if t, ok := el.Find(e.def.Selectors.Name); ok {
		if f := found(t.Text()); f.Found {
			return f
		}
	}

	img, ok := el.Find(e.def.Selectors.Image)
	if !ok {
		return Field{}
	}
	attr := e.def.Selectors.NameAttr
	if attr == "" {
		attr = "alt"
	}
	v, _ := img.Attr(attr)
	return found(v)
}

// Price reads the price text and applies the site's currency prefix
func (e *Extractor) Price(el render.Element) Field {
	p, ok := el.Find(e.def.Selectors.Price)
	if !ok {
		return Field{}
	}
	f := found(p.Text())
	if f.Found && e.def.PricePrefix != "" && !strings.HasPrefix(f.Value, e.def.PricePrefix) {
		f.Value = e.def.PricePrefix + f.Value
	}
	return f
}

// Rating reads the rating for sites that expose one. With NumericRating
// only the first number of the text is kept.
func (e *Extractor) Rating(el render.Element) Field {
	r, ok := el.Find(e.def.Selectors.Rating)
	if !ok {
		return Field{}
	}
	f := found(r.Text())
	if !f.Found {
		if label, ok := r.Attr("aria-label"); ok {
			f = found(label)
		}
	}
	if f.Found && e.def.NumericRating {
		return found(ratingNumber.FindString(f.Value))
	}
	return f
}
