// Package catalog resolves bundled-asset names into media.AssetRef
// values carrying a stable numeric identity and a backend-addressable
// locator. Catalogs come from JSON mapping files or directory scans and
// can be chained into a search path.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"cueplay.click/internal/media"
)

// Catalog looks asset names up.
type Catalog interface {
	// Lookup resolves a name. A miss returns *NotFoundError.
	Lookup(name string) (media.AssetRef, error)
	// Names lists every asset name, sorted.
	Names() []string
	// Name identifies the catalog for logging and errors.
	Name() string
	// Type identifies the catalog flavor ("json", "directory", "chain").
	Type() string
}

// NotFoundError reports an asset name no searched catalog carries.
type NotFoundError struct {
	Asset    string
	Searched []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("asset not found: %s (searched: %s)",
		e.Asset, strings.Join(e.Searched, ", "))
}

// IsNotFound reports whether err is a catalog miss.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// Source resolves a name through the catalog into a playable source.
func Source(c Catalog, name string) (media.Source, error) {
	ref, err := c.Lookup(name)
	if err != nil {
		return media.Source{}, err
	}
	return media.ResolvedAsset(ref), nil
}

// Chain searches catalogs in order and answers from the first hit.
type Chain struct {
	name     string
	catalogs []Catalog
}

// NewChain builds a search path over the given catalogs.
func NewChain(name string, catalogs ...Catalog) *Chain {
	slog.Debug("creating catalog chain",
		"name", name,
		"catalogs", len(catalogs))
	return &Chain{name: name, catalogs: catalogs}
}

// Lookup tries each catalog in order.
func (c *Chain) Lookup(name string) (media.AssetRef, error) {
	searched := make([]string, 0, len(c.catalogs))
	for _, cat := range c.catalogs {
		ref, err := cat.Lookup(name)
		if err == nil {
			slog.Debug("chain lookup hit",
				"asset", name,
				"catalog", cat.Name(),
				"id", ref.ID)
			return ref, nil
		}
		if !IsNotFound(err) {
			return media.AssetRef{}, err
		}
		searched = append(searched, cat.Name())
	}

	slog.Debug("chain lookup miss", "asset", name, "searched", searched)
	return media.AssetRef{}, &NotFoundError{Asset: name, Searched: searched}
}

// Names lists the union of all member names, sorted.
func (c *Chain) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, cat := range c.catalogs {
		for _, n := range cat.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (c *Chain) Name() string { return c.name }

func (c *Chain) Type() string { return "chain" }
