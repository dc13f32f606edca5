// Package site holds the static catalog of harvestable sites: how to reach
// their category listings, how to pick fields out of a product container,
// and the canned records served when a site cannot be harvested live.
package site

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	herrors "sjsage522/harvester/pkg/errors"
)

//go:embed sites.yaml
var builtin []byte

// Selectors contains CSS selectors for the parts of one product container
type Selectors struct {
	Container string `yaml:"container"`
	Link      string `yaml:"link"`
	Image     string `yaml:"image"`
	NameAttr  string `yaml:"name_attr"`
	Name      string `yaml:"name"`
	Price     string `yaml:"price"`
	Rating    string `yaml:"rating"`
}

// Pagination describes how page numbers are carried in listing URLs.
// When PerPage is set the parameter holds an item offset instead of the
// page number.
type Pagination struct {
	Param   string `yaml:"param"`
	PerPage int    `yaml:"per_page"`
}

// Category maps a menu label to a listing path relative to the base URL
type Category struct {
	Label string `yaml:"label"`
	Path  string `yaml:"path"`
}

// DemoEntry is one canned record of a site's demo dataset
type DemoEntry struct {
	Name   string `yaml:"name"`
	Price  string `yaml:"price"`
	Rating string `yaml:"rating"`
	Link   string `yaml:"link"`
}

// Definition describes one source site. Definitions are loaded once and
// never modified.
type Definition struct {
	ID            string     `yaml:"id"`
	Name          string     `yaml:"name"`
	BaseURL       string     `yaml:"base_url"`
	Categories    []Category `yaml:"categories"`
	Selectors     Selectors  `yaml:"selectors"`
	Pagination    Pagination `yaml:"pagination"`
	PricePrefix   string     `yaml:"price_prefix"`
	NumericRating bool       `yaml:"numeric_rating"`
}

type siteDocument struct {
	Definition `yaml:",inline"`
	Demo       []DemoEntry `yaml:"demo"`
}

type catalogDocument struct {
	Sites []siteDocument `yaml:"sites"`
}

// Registry is the read-only catalog of site definitions and demo datasets
type Registry struct {
	order []string
	sites map[string]Definition
	demo  map[string][]DemoEntry
}

// Default loads the built-in catalog
func Default() (*Registry, error) {
	return Load(builtin)
}

// LoadFile loads a catalog from a YAML file
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.NewConfiguration("read site catalog "+path, err)
	}
	return Load(data)
}

// Load parses and validates a YAML catalog
func Load(data []byte) (*Registry, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, herrors.NewConfiguration("parse site catalog", err)
	}
	if len(doc.Sites) == 0 {
		return nil, herrors.NewConfiguration("site catalog is empty", nil)
	}

	r := &Registry{
		sites: make(map[string]Definition, len(doc.Sites)),
		demo:  make(map[string][]DemoEntry, len(doc.Sites)),
	}
	for _, s := range doc.Sites {
		def := s.Definition
		if err := def.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.sites[def.ID]; dup {
			return nil, herrors.NewConfiguration("duplicate site id "+def.ID, nil)
		}
		if def.Pagination.Param == "" {
			def.Pagination.Param = "page"
		}
		r.order = append(r.order, def.ID)
		r.sites[def.ID] = def
		r.demo[def.ID] = s.Demo
	}
	return r, nil
}

func (d Definition) validate() error {
	if d.ID == "" || d.Name == "" {
		return herrors.NewConfiguration("site needs an id and a name", nil)
	}
	u, err := url.Parse(d.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return herrors.NewConfiguration(fmt.Sprintf("site %s has an invalid base_url %q", d.ID, d.BaseURL), err)
	}
	if d.Selectors.Container == "" || d.Selectors.Link == "" {
		return herrors.NewConfiguration("site "+d.ID+" needs container and link selectors", nil)
	}
	if len(d.Categories) == 0 {
		return herrors.NewConfiguration("site "+d.ID+" defines no categories", nil)
	}
	return nil
}

// IDs returns the site ids in catalog order
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Definition returns the definition of a site
func (r *Registry) Definition(id string) (Definition, error) {
	def, ok := r.sites[id]
	if !ok {
		return Definition{}, herrors.NewUnknownSite(id)
	}
	return def, nil
}

// Categories returns the category labels of a site in catalog order
func (r *Registry) Categories(id string) ([]string, error) {
	def, err := r.Definition(id)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(def.Categories))
	for i, c := range def.Categories {
		labels[i] = c.Label
	}
	return labels, nil
}

// CategoryAt resolves a 1-based ordinal into a category label
func (r *Registry) CategoryAt(id string, ordinal int) (string, error) {
	labels, err := r.Categories(id)
	if err != nil {
		return "", err
	}
	if ordinal < 1 || ordinal > len(labels) {
		return "", herrors.NewUnknownCategory(id, strconv.Itoa(ordinal))
	}
	return labels[ordinal-1], nil
}

// Demo returns the canned dataset of a site. The slice must not be modified.
func (r *Registry) Demo(id string) []DemoEntry {
	return r.demo[id]
}

// CategoryPath returns the listing path for a category label
func (d Definition) CategoryPath(label string) (string, bool) {
	for _, c := range d.Categories {
		if c.Label == label {
			return c.Path, true
		}
	}
	return "", false
}

// PageURL builds the listing URL of a category page. Page 1 is the bare
// category path; later pages add the pagination parameter to whatever query
// the path already carries.
func (d Definition) PageURL(label string, page int) (string, error) {
	path, ok := d.CategoryPath(label)
	if !ok {
		return "", herrors.NewUnknownCategory(d.ID, label)
	}

	u, err := url.Parse(strings.TrimRight(d.BaseURL, "/") + path)
	if err != nil {
		return "", herrors.NewConfiguration("bad category path for "+d.ID, err)
	}
	if page <= 1 {
		return u.String(), nil
	}

	value := page
	if d.Pagination.PerPage > 0 {
		value = (page - 1) * d.Pagination.PerPage
	}
	param := url.QueryEscape(d.Pagination.Param) + "=" + strconv.Itoa(value)
	if u.RawQuery == "" {
		u.RawQuery = param
	} else {
		u.RawQuery += "&" + param
	}
	return u.String(), nil
}

// Host returns the host part of the base URL
func (d Definition) Host() string {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
