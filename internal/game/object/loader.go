package object

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// LoadTemplateFromBytes parses and validates a single template document.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	if tmpl.ID == "" {
		return nil, fmt.Errorf("template is missing an id")
	}
	if tmpl.Names.Get(i18n.LocaleEN) == "" {
		return nil, fmt.Errorf("template %q is missing an English name", tmpl.ID)
	}
	if tmpl.Stackable && tmpl.MaxStack < 2 {
		return nil, fmt.Errorf("stackable template %q must have max_stack >= 2", tmpl.ID)
	}
	return &tmpl, nil
}

// LoadTemplates reads every .yaml file in dir as one object template.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading object dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
