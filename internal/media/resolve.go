package media

import (
	"hash/fnv"
	"log/slog"
	"path/filepath"
	"strings"
)

// Handle addresses exactly one prepared native player. For asset sources it
// equals the asset's numeric identity; for path sources it is a hash of the
// resolved locator. Distinct paths hashing to the same handle is an accepted
// risk of the scheme.
type Handle uint64

// PathNormalizer is implemented by backends whose native layer addresses
// media by a normalized resource name (typically case-folded with the
// extension stripped). It is consulted only for relative, non-URL,
// non-asset locators.
type PathNormalizer interface {
	NormalizePath(locator string) string
}

// Resolve derives the handle and the backend-addressable locator for a
// source. Resolution is pure and synchronous; there are no error conditions.
func Resolve(src Source, norm PathNormalizer) (Handle, string) {
	if ref, ok := src.Asset(); ok {
		slog.Debug("resolved asset source",
			"asset_name", ref.Name,
			"handle", ref.ID,
			"locator", ref.URI)
		return Handle(ref.ID), ref.URI
	}

	locator := src.Filename()
	if src.BasePath() != "" {
		locator = src.BasePath() + "/" + src.Filename()
	}

	if norm != nil && isRelativePath(locator) {
		normalized := norm.NormalizePath(locator)
		if normalized != locator {
			slog.Debug("applied backend path normalization",
				"locator", locator,
				"normalized", normalized)
			locator = normalized
		}
	}

	h := hashLocator(locator)

	slog.Debug("resolved path source",
		"locator", locator,
		"handle", uint64(h))

	return h, locator
}

// hashLocator computes the path-source handle. FNV-1a is a polynomial rolling
// hash; it is not collision-proof, only unique enough to disambiguate
// concurrently prepared players in one process.
func hashLocator(locator string) Handle {
	h := fnv.New64a()
	h.Write([]byte(locator))
	return Handle(h.Sum64())
}

// isRelativePath reports whether the locator is a plain relative file path,
// as opposed to a URL or an absolute path. Only those are subject to backend
// normalization policy.
func isRelativePath(locator string) bool {
	if strings.Contains(locator, "://") {
		return false
	}
	return !filepath.IsAbs(locator)
}
