// Package asset defines template handles and the loaders that produce them.
//
// A *Template is compared by pointer identity: two loads of the same path return two
// distinct handles, and anything keyed by template (pools, preload lists) treats them
// as unrelated.
package asset

import (
	"bytes"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/json"
)

// Template describes a node tree that can be instantiated any number of times.
// Loaders return fresh handles; callers treat a resolved handle as immutable.
type Template struct {
	Name      string
	Path      string
	Active    bool
	Transform hierarchy.Transform
	Labels    map[string]string
	Children  []*Template
}

// New returns an active template with a default transform.
func New(name string, children ...*Template) *Template {
	return &Template{
		Name:      name,
		Active:    true,
		Transform: hierarchy.DefaultTransform(),
		Children:  children,
	}
}

// Clone deep-copies t. The copy is a distinct handle.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := &Template{
		Name:      t.Name,
		Path:      t.Path,
		Active:    t.Active,
		Transform: t.Transform,
	}
	if t.Labels != nil {
		out.Labels = make(map[string]string, len(t.Labels))
		for k, v := range t.Labels {
			out.Labels[k] = v
		}
	}
	for _, c := range t.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}

// NodeCount returns the number of nodes an instance of t contains.
func (t *Template) NodeCount() int {
	n := 1
	for _, c := range t.Children {
		n += c.NodeCount()
	}
	return n
}

// Validate checks that every node in the tree is named.
func (t *Template) Validate() error {
	if t == nil {
		return errors.New(errors.ErrorTypeNullSource, "template is nil")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New(errors.ErrorTypeInvalidTemplate, "template node has no name").
			WithDetail("path", t.Path)
	}
	for _, c := range t.Children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Format is a template encoding.
type Format string

const (
	// FormatJSON is decoded with goccy/go-json.
	FormatJSON Format = "json"
	// FormatYAML is decoded with yaml.v3.
	FormatYAML Format = "yaml"
)

// FormatForExtension maps ".json", ".yaml" and ".yml" to a Format.
func FormatForExtension(ext string) (Format, bool) {
	switch strings.ToLower(ext) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}

// document is the on-disk shape. Active is a pointer so an omitted flag means active.
type document struct {
	Name      string               `json:"name" yaml:"name"`
	Active    *bool                `json:"active,omitempty" yaml:"active,omitempty"`
	Transform *hierarchy.Transform `json:"transform,omitempty" yaml:"transform,omitempty"`
	Labels    map[string]string    `json:"labels,omitempty" yaml:"labels,omitempty"`
	Children  []*document          `json:"children,omitempty" yaml:"children,omitempty"`
}

func (d *document) template() *Template {
	t := &Template{
		Name:      d.Name,
		Active:    d.Active == nil || *d.Active,
		Transform: hierarchy.DefaultTransform(),
		Labels:    d.Labels,
	}
	if d.Transform != nil {
		t.Transform = d.Transform.Normalized()
	}
	for _, c := range d.Children {
		if c != nil {
			t.Children = append(t.Children, c.template())
		}
	}
	return t
}

func toDocument(t *Template) *document {
	active := t.Active
	tr := t.Transform
	d := &document{Name: t.Name, Active: &active, Transform: &tr, Labels: t.Labels}
	for _, c := range t.Children {
		d.Children = append(d.Children, toDocument(c))
	}
	return d
}

// Decode parses a template document. The returned template's Path is set to p.
func Decode(data []byte, format Format, p string) (*Template, error) {
	var doc document
	var err error
	switch format {
	case FormatJSON:
		err = json.UnmarshalStrict(data, &doc)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&doc)
	default:
		return nil, errors.Newf(errors.ErrorTypeInvalidTemplate, "unknown template format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidTemplate, "decode template").
			WithDetail("path", p)
	}
	t := doc.template()
	if t.Name == "" {
		t.Name = path.Base(p)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	setPath(t, p)
	return t, nil
}

// Encode serializes t in the given format.
func Encode(t *Template, format Format) ([]byte, error) {
	if t == nil {
		return nil, errors.New(errors.ErrorTypeNullSource, "template is nil")
	}
	doc := toDocument(t)
	switch format {
	case FormatJSON:
		return json.Marshal(doc)
	case FormatYAML:
		return yaml.Marshal(doc)
	}
	return nil, errors.Newf(errors.ErrorTypeInvalidTemplate, "unknown template format %q", format)
}

func setPath(t *Template, p string) {
	t.Path = p
	for _, c := range t.Children {
		setPath(c, p)
	}
}
