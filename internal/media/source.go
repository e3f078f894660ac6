package media

import (
	"fmt"
	"log/slog"
)

// AssetRef is a bundled-asset reference that has already been resolved by a
// catalog into a backend-addressable URI and a stable numeric identity.
type AssetRef struct {
	Name string // catalog name the asset was looked up under
	ID   uint64 // numeric identity, unique within the catalog
	URI  string // backend-addressable locator
}

// Source identifies what a controller plays: either a resolved bundled asset
// or a file path / URL, optionally rooted at a base path. Immutable after
// construction.
type Source struct {
	filename string
	basePath string
	asset    *AssetRef
}

// SourceOption configures a file source at construction time.
type SourceOption func(*Source)

// WithBasePath roots a relative filename at the given directory or URL prefix.
func WithBasePath(base string) SourceOption {
	return func(s *Source) {
		s.basePath = base
	}
}

// File creates a source for a path or URL.
func File(name string, opts ...SourceOption) Source {
	s := Source{filename: name}
	for _, opt := range opts {
		opt(&s)
	}

	slog.Debug("created file source", "filename", s.filename, "base_path", s.basePath)
	return s
}

// ResolvedAsset creates a source for an asset reference a catalog has already
// resolved.
func ResolvedAsset(ref AssetRef) Source {
	slog.Debug("created asset source", "asset_name", ref.Name, "asset_id", ref.ID, "uri", ref.URI)
	return Source{asset: &ref}
}

// Filename returns the path or URL the source was constructed with. Empty for
// asset sources.
func (s Source) Filename() string {
	return s.filename
}

// BasePath returns the base path the filename is rooted at, if any.
func (s Source) BasePath() string {
	return s.basePath
}

// IsAsset reports whether the source is a resolved bundled asset.
func (s Source) IsAsset() bool {
	return s.asset != nil
}

// Asset returns the resolved asset reference, if the source is one.
func (s Source) Asset() (AssetRef, bool) {
	if s.asset == nil {
		return AssetRef{}, false
	}
	return *s.asset, true
}

// String describes the source for logging.
func (s Source) String() string {
	if s.asset != nil {
		return fmt.Sprintf("asset:%s#%d", s.asset.Name, s.asset.ID)
	}
	if s.basePath != "" {
		return s.basePath + "/" + s.filename
	}
	return s.filename
}
