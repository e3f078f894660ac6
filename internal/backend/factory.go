package backend

import (
	"fmt"
	"log/slog"
)

// Backend kind names accepted by the factory.
const (
	KindAuto  = "auto"
	KindMalgo = "malgo"
	KindBeep  = "beep"
	KindStub  = "stub"
)

// Factory creates Backend instances by kind name.
type Factory interface {
	Create(kind string) (Backend, error)
	Supported() []string
	IsValidKind(kind string) bool
}

// DefaultFactory implements Factory with platform detection.
type DefaultFactory struct {
	isWSL         func() bool
	commandExists func(string) bool
}

// NewFactory creates a DefaultFactory with real platform detection.
func NewFactory() *DefaultFactory {
	return &DefaultFactory{
		isWSL:         IsWSL,
		commandExists: CommandExists,
	}
}

// NewFactoryWithDetection creates a factory with injected platform
// checks for testing.
func NewFactoryWithDetection(isWSL func() bool, commandExists func(string) bool) *DefaultFactory {
	return &DefaultFactory{
		isWSL:         isWSL,
		commandExists: commandExists,
	}
}

// Create builds a Backend for the kind. Empty kind defaults to auto.
func (f *DefaultFactory) Create(kind string) (Backend, error) {
	if kind == "" {
		kind = KindAuto
	}

	slog.Debug("creating audio backend", "kind", kind)

	switch kind {
	case KindAuto:
		return f.Create(detectOptimalKindWithChecker(f.isWSL(), f.commandExists))
	case KindMalgo:
		return NewMalgo(), nil
	case KindBeep:
		return NewBeep(), nil
	case KindStub:
		return NewStub(), nil
	default:
		slog.Error("invalid backend kind requested", "kind", kind)
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackend, kind)
	}
}

// Supported returns every kind the factory accepts.
func (f *DefaultFactory) Supported() []string {
	return []string{KindAuto, KindMalgo, KindBeep, KindStub}
}

// IsValidKind checks whether the kind is supported. Empty is valid and
// means auto.
func (f *DefaultFactory) IsValidKind(kind string) bool {
	if kind == "" {
		return true
	}
	for _, s := range f.Supported() {
		if kind == s {
			return true
		}
	}
	return false
}
