package inspection

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

var ErrUnknownTemplate = errors.New("unknown inspection form")

type Field struct {
	Name      string `yaml:"name" json:"name"`
	Label     string `yaml:"label" json:"label"`
	Required  bool   `yaml:"required" json:"required"`
	Multiline bool   `yaml:"multiline" json:"multiline,omitempty"`
}

type Checkbox struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label" json:"label"`
}

// Section is a titled checklist. Its checkboxes are posted as <ID>_<index>.
type Section struct {
	ID    string   `yaml:"id" json:"id"`
	Title string   `yaml:"title" json:"title"`
	Items []string `yaml:"items" json:"items"`
}

func (s Section) Checkboxes() []Checkbox {
	out := make([]Checkbox, len(s.Items))
	for i, item := range s.Items {
		out[i] = Checkbox{Name: fmt.Sprintf("%s_%d", s.ID, i), Label: item}
	}
	return out
}

type Template struct {
	ID         string     `yaml:"id" json:"id"`
	Title      string     `yaml:"title" json:"title"`
	Subject    string     `yaml:"subject" json:"subject"`
	Fields     []Field    `yaml:"fields" json:"fields"`
	Checkboxes []Checkbox `yaml:"checkboxes" json:"checkboxes,omitempty"`
	Sections   []Section  `yaml:"sections" json:"sections,omitempty"`
	Photos     []string   `yaml:"photos" json:"photos,omitempty"`
}

func (t Template) AllowsPhoto(field string) bool {
	for _, name := range t.Photos {
		if name == field {
			return true
		}
	}
	return false
}

type Catalog struct {
	templates []Template
	byID      map[string]Template
}

// LoadCatalog parses a catalog document. Template ids must be unique.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse form catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]Template, len(doc.Templates))}
	for _, tpl := range doc.Templates {
		tpl.ID = strings.TrimSpace(tpl.ID)
		if tpl.ID == "" || tpl.Title == "" {
			return nil, fmt.Errorf("form catalog: template id and title are required")
		}
		if _, dup := c.byID[tpl.ID]; dup {
			return nil, fmt.Errorf("form catalog: duplicate template %q", tpl.ID)
		}
		if tpl.Subject == "" {
			tpl.Subject = tpl.Title
		}
		c.byID[tpl.ID] = tpl
		c.templates = append(c.templates, tpl)
	}
	return c, nil
}

// DefaultCatalog returns the built-in forms.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) List() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

func (c *Catalog) Get(id string) (Template, error) {
	tpl, ok := c.byID[id]
	if !ok {
		return Template{}, ErrUnknownTemplate
	}
	return tpl, nil
}
