package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"cueplay.click/internal/media"
)

// jsonEntry is one asset in a JSON catalog file. ID zero means the
// catalog assigns one by sorted name order.
type jsonEntry struct {
	ID   uint64 `json:"id,omitempty"`
	Path string `json:"path"`
}

// JSONCatalog resolves asset names through a mapping file of
// name -> {id, path} entries.
type JSONCatalog struct {
	name   string
	assets map[string]media.AssetRef
}

// LoadJSONCatalog reads a catalog mapping file. Relative asset paths are
// rooted at the mapping file's directory.
func LoadJSONCatalog(fsys afero.Fs, path string) (*JSONCatalog, error) {
	slog.Debug("loading JSON catalog", "path", path)

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		slog.Error("failed to read catalog file", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	cat, err := ParseJSONCatalog(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for name, ref := range cat.assets {
		if !filepath.IsAbs(ref.URI) {
			ref.URI = filepath.Join(base, ref.URI)
			cat.assets[name] = ref
		}
	}
	return cat, nil
}

// ParseJSONCatalog builds a catalog from raw mapping bytes.
func ParseJSONCatalog(name string, data []byte) (*JSONCatalog, error) {
	var entries map[string]jsonEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Error("failed to parse catalog JSON", "catalog", name, "error", err)
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}

	assets := make(map[string]media.AssetRef, len(entries))

	// Names with explicit IDs keep them; the rest get stable IDs by
	// sorted name order, skipping taken values.
	taken := make(map[uint64]bool)
	var unassigned []string
	for asset, e := range entries {
		if e.Path == "" {
			return nil, fmt.Errorf("asset %q has no path", asset)
		}
		if e.ID != 0 {
			if taken[e.ID] {
				return nil, fmt.Errorf("asset %q reuses id %d", asset, e.ID)
			}
			taken[e.ID] = true
			assets[asset] = media.AssetRef{Name: asset, ID: e.ID, URI: e.Path}
		} else {
			unassigned = append(unassigned, asset)
		}
	}

	sort.Strings(unassigned)
	next := uint64(1)
	for _, asset := range unassigned {
		for taken[next] {
			next++
		}
		taken[next] = true
		assets[asset] = media.AssetRef{Name: asset, ID: next, URI: entries[asset].Path}
	}

	slog.Debug("parsed JSON catalog", "catalog", name, "assets", len(assets))
	return &JSONCatalog{name: name, assets: assets}, nil
}

// Lookup resolves an asset name.
func (c *JSONCatalog) Lookup(name string) (media.AssetRef, error) {
	ref, ok := c.assets[name]
	if !ok {
		return media.AssetRef{}, &NotFoundError{Asset: name, Searched: []string{c.name}}
	}

	slog.Debug("JSON catalog lookup hit",
		"catalog", c.name,
		"asset", name,
		"id", ref.ID,
		"uri", ref.URI)
	return ref, nil
}

// Names lists every asset name, sorted.
func (c *JSONCatalog) Names() []string {
	names := make([]string, 0, len(c.assets))
	for n := range c.assets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *JSONCatalog) Name() string { return c.name }

func (c *JSONCatalog) Type() string { return "json" }
