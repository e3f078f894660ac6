// Package fs abstracts filesystem access behind afero so config and
// catalog IO can run against an in-memory filesystem in tests.
package fs

import (
	"os"

	"github.com/spf13/afero"
)

// Factory hands out filesystem instances.
type Factory interface {
	// Production returns a filesystem backed by the real OS.
	Production() afero.Fs
	// Memory returns an in-memory filesystem for tests.
	Memory() afero.Fs
}

// DefaultFactory is the standard Factory implementation.
type DefaultFactory struct{}

// NewDefaultFactory creates a filesystem factory.
func NewDefaultFactory() Factory {
	return &DefaultFactory{}
}

// Production returns a filesystem backed by the real OS.
func (f *DefaultFactory) Production() afero.Fs {
	return afero.NewOsFs()
}

// Memory returns an in-memory filesystem for tests.
func (f *DefaultFactory) Memory() afero.Fs {
	return afero.NewMemMapFs()
}

// ExecutablePath returns the running binary's path.
func ExecutablePath() (string, error) {
	return os.Executable()
}
