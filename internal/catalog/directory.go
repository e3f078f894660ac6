package catalog

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"cueplay.click/internal/media"
)

// audioExtensions are the file types a directory scan picks up.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".aiff": true,
	".aif":  true,
	".flac": true,
}

// DirectoryCatalog resolves asset names against the audio files of one
// directory. Asset names are filenames without extension; numeric
// identities are assigned by sorted filename order, so they stay stable
// as long as the directory contents do.
type DirectoryCatalog struct {
	name   string
	dir    string
	assets map[string]media.AssetRef
}

// ScanDirectory builds a catalog from the audio files directly inside
// dir. Subdirectories are not descended into.
func ScanDirectory(fsys afero.Fs, dir string) (*DirectoryCatalog, error) {
	slog.Debug("scanning directory catalog", "dir", dir)

	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		slog.Error("failed to read catalog directory", "dir", dir, "error", err)
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var files []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if audioExtensions[strings.ToLower(filepath.Ext(info.Name()))] {
			files = append(files, info.Name())
		}
	}
	sort.Strings(files)

	assets := make(map[string]media.AssetRef, len(files))
	for i, file := range files {
		name := strings.TrimSuffix(file, filepath.Ext(file))
		if _, dup := assets[name]; dup {
			// click.wav and click.mp3 in one directory; first sorted
			// file wins.
			slog.Warn("duplicate asset name in directory catalog",
				"dir", dir,
				"asset", name,
				"skipped_file", file)
			continue
		}
		assets[name] = media.AssetRef{
			Name: name,
			ID:   uint64(i + 1),
			URI:  filepath.Join(dir, file),
		}
	}

	slog.Debug("directory catalog scanned",
		"dir", dir,
		"files", len(files),
		"assets", len(assets))

	return &DirectoryCatalog{name: filepath.Base(dir), dir: dir, assets: assets}, nil
}

// Lookup resolves an asset name.
func (c *DirectoryCatalog) Lookup(name string) (media.AssetRef, error) {
	ref, ok := c.assets[name]
	if !ok {
		return media.AssetRef{}, &NotFoundError{Asset: name, Searched: []string{c.name}}
	}

	slog.Debug("directory catalog lookup hit",
		"catalog", c.name,
		"asset", name,
		"id", ref.ID,
		"uri", ref.URI)
	return ref, nil
}

// Names lists every asset name, sorted.
func (c *DirectoryCatalog) Names() []string {
	names := make([]string, 0, len(c.assets))
	for n := range c.assets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *DirectoryCatalog) Name() string { return c.name }

func (c *DirectoryCatalog) Type() string { return "directory" }
