package wais

import (
	"os"
	"sort"
	"strings"

	"github.com/akitasoftware/wais/internal/validate"
)

// ServerCatalog is an abstract view of the server's share directory: an
// enumerable set of flat filenames, dotfiles hidden, every returned name
// guaranteed to resolve under the data root (spec §3).
type ServerCatalog struct {
	dataRoot string
}

// NewServerCatalog creates a catalog rooted at dataRoot.
func NewServerCatalog(dataRoot string) *ServerCatalog {
	return &ServerCatalog{dataRoot: dataRoot}
}

// List enumerates the data root, filtering out dotfiles and non-regular
// files (spec §4.3 list action).
func (c *ServerCatalog) List() ([]string, error) {
	entries, err := os.ReadDir(c.dataRoot)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path, err := c.Resolve(e.Name())
		if err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Search returns filenames containing query as a case-insensitive
// substring. An empty query returns no results, not all files (spec §4.3:
// "empty query returns empty results, not all files").
func (c *ServerCatalog) Search(query string) ([]string, error) {
	if query == "" {
		return []string{}, nil
	}
	all, err := c.List()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var results []string
	for _, name := range all {
		if strings.Contains(strings.ToLower(name), q) {
			results = append(results, name)
		}
	}
	if results == nil {
		results = []string{}
	}
	return results, nil
}

// Resolve canonicalizes filename against the data root and verifies
// containment, implementing spec §3/P3's traversal-safety invariant. It
// delegates to internal/validate.DataPath, the same primitive exercised by
// the path-safety test suite.
func (c *ServerCatalog) Resolve(filename string) (string, error) {
	return validate.DataPath(c.dataRoot, filename)
}
