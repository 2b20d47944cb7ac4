package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the loaded locale string tables.
type Catalog struct {
	// entries maps message key → locale → template.
	// Templates substitute {param} placeholders.
	entries map[string]map[Locale]string
}

// NewCatalog creates a Catalog from an in-memory table. Useful for tests.
func NewCatalog(entries map[string]map[Locale]string) *Catalog {
	if entries == nil {
		entries = make(map[string]map[Locale]string)
	}
	return &Catalog{entries: entries}
}

// LoadCatalog reads <dir>/<locale>.yaml for every supported locale and
// merges them into a single catalog. Each file is a flat map of message
// key to template string.
//
// Precondition: dir must contain at least en.yaml.
// Postcondition: Returns a Catalog or an error on the first unreadable file.
func LoadCatalog(dir string) (*Catalog, error) {
	c := NewCatalog(nil)
	for _, loc := range []Locale{LocaleEN, LocaleKO} {
		path := filepath.Join(dir, string(loc)+".yaml")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) && loc != LocaleEN {
				continue
			}
			return nil, fmt.Errorf("reading locale file %q: %w", path, err)
		}
		var table map[string]string
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parsing locale file %q: %w", path, err)
		}
		for key, tmpl := range table {
			if c.entries[key] == nil {
				c.entries[key] = make(map[Locale]string, 2)
			}
			c.entries[key][loc] = tmpl
		}
	}
	return c, nil
}

// Add registers a template for a key and locale, replacing any existing one.
func (c *Catalog) Add(key string, loc Locale, tmpl string) {
	if c.entries[key] == nil {
		c.entries[key] = make(map[Locale]string, 2)
	}
	c.entries[key][loc] = tmpl
}

// Render produces the localized string for t in the given locale.
// Unknown keys render as the key itself so missing content is visible
// rather than silent.
//
// Postcondition: Returns a non-empty string for any Text with a non-empty key.
func (c *Catalog) Render(loc Locale, t Text) string {
	if t.Key == rawKey {
		return t.Params["text"]
	}

	byLocale, ok := c.entries[t.Key]
	if !ok {
		return t.Key
	}
	tmpl, ok := byLocale[loc]
	if !ok || tmpl == "" {
		tmpl, ok = byLocale[LocaleEN]
		if !ok || tmpl == "" {
			return t.Key
		}
	}

	out := tmpl
	for k, v := range t.Params {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	for k, names := range t.NamedParams {
		out = strings.ReplaceAll(out, "{"+k+"}", names.Get(loc))
	}
	return out
}

// Has reports whether the catalog contains key in any locale.
func (c *Catalog) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}
