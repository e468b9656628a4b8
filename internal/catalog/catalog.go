// Package catalog lists the models the client may select.
package catalog

import "strings"

// Catalog is an ordered list of available model ids.
type Catalog struct {
	ids   []string
	names map[string]string
}

// New builds a catalog. Blank and duplicate ids are dropped.
func New(ids ...string) *Catalog {
	c := &Catalog{names: map[string]string{}}
	seen := map[string]struct{}{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		c.ids = append(c.ids, id)
	}
	return c
}

// WithDisplayName registers a human readable name for id.
func (c *Catalog) WithDisplayName(id, name string) *Catalog {
	c.names[id] = name
	return c
}

// IDs returns the available model ids in order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

// Contains reports whether id is available.
func (c *Catalog) Contains(id string) bool {
	for _, m := range c.ids {
		if m == id {
			return true
		}
	}
	return false
}

// Default returns the first available model, or "" when none is.
func (c *Catalog) Default() string {
	if len(c.ids) == 0 {
		return ""
	}
	return c.ids[0]
}

// DisplayName returns the registered name of id, or id itself.
func (c *Catalog) DisplayName(id string) string {
	if n, ok := c.names[id]; ok {
		return n
	}
	return id
}

// Resolve picks the model to use: requested when available, otherwise
// current when set, otherwise the first available model. An empty catalog
// yields "" without failing.
func (c *Catalog) Resolve(requested, current string) string {
	if requested != "" && c.Contains(requested) {
		return requested
	}
	if current != "" {
		return current
	}
	return c.Default()
}
