package backend

import (
	"errors"
	"testing"
)

func TestFactorySupportedKinds(t *testing.T) {
	f := NewFactory()

	supported := f.Supported()
	expected := []string{"auto", "malgo", "beep", "stub"}
	if len(supported) != len(expected) {
		t.Fatalf("supported = %v, expected %v", supported, expected)
	}
	for i, kind := range expected {
		if supported[i] != kind {
			t.Errorf("supported[%d] = %q, expected %q", i, supported[i], kind)
		}
	}
}

func TestFactoryIsValidKind(t *testing.T) {
	f := NewFactory()

	testCases := []struct {
		kind  string
		valid bool
	}{
		{"", true},
		{"auto", true},
		{"malgo", true},
		{"beep", true},
		{"stub", true},
		{"pulseaudio", false},
		{"MALGO", false},
	}

	for _, tc := range testCases {
		if got := f.IsValidKind(tc.kind); got != tc.valid {
			t.Errorf("IsValidKind(%q) = %v, expected %v", tc.kind, got, tc.valid)
		}
	}
}

func TestFactoryCreateExplicitKinds(t *testing.T) {
	f := NewFactory()

	t.Run("stub", func(t *testing.T) {
		b, err := f.Create(KindStub)
		if err != nil {
			t.Fatalf("Create(stub) failed: %v", err)
		}
		if _, ok := b.(*Stub); !ok {
			t.Errorf("Create(stub) = %T, expected *Stub", b)
		}
	})

	t.Run("malgo", func(t *testing.T) {
		b, err := f.Create(KindMalgo)
		if err != nil {
			t.Fatalf("Create(malgo) failed: %v", err)
		}
		if _, ok := b.(*Malgo); !ok {
			t.Errorf("Create(malgo) = %T, expected *Malgo", b)
		}
	})

	t.Run("beep", func(t *testing.T) {
		b, err := f.Create(KindBeep)
		if err != nil {
			t.Fatalf("Create(beep) failed: %v", err)
		}
		if _, ok := b.(*Beep); !ok {
			t.Errorf("Create(beep) = %T, expected *Beep", b)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := f.Create("bogus")
		if !errors.Is(err, ErrInvalidBackend) {
			t.Errorf("expected ErrInvalidBackend, got %v", err)
		}
	})
}

func TestFactoryAutoSelection(t *testing.T) {
	t.Run("native prefers malgo", func(t *testing.T) {
		f := NewFactoryWithDetection(
			func() bool { return false },
			func(string) bool { return true },
		)
		b, err := f.Create(KindAuto)
		if err != nil {
			t.Fatalf("Create(auto) failed: %v", err)
		}
		if _, ok := b.(*Malgo); !ok {
			t.Errorf("native auto = %T, expected *Malgo", b)
		}
	})

	t.Run("wsl with pulse prefers beep", func(t *testing.T) {
		f := NewFactoryWithDetection(
			func() bool { return true },
			func(cmd string) bool { return cmd == "pactl" },
		)
		b, err := f.Create(KindAuto)
		if err != nil {
			t.Fatalf("Create(auto) failed: %v", err)
		}
		if _, ok := b.(*Beep); !ok {
			t.Errorf("WSL auto = %T, expected *Beep", b)
		}
	})

	t.Run("wsl without pulse falls back to malgo", func(t *testing.T) {
		f := NewFactoryWithDetection(
			func() bool { return true },
			func(string) bool { return false },
		)
		b, err := f.Create(KindAuto)
		if err != nil {
			t.Fatalf("Create(auto) failed: %v", err)
		}
		if _, ok := b.(*Malgo); !ok {
			t.Errorf("WSL-no-pulse auto = %T, expected *Malgo", b)
		}
	})

	t.Run("empty kind means auto", func(t *testing.T) {
		f := NewFactoryWithDetection(
			func() bool { return false },
			func(string) bool { return false },
		)
		b, err := f.Create("")
		if err != nil {
			t.Fatalf("Create(\"\") failed: %v", err)
		}
		if _, ok := b.(*Malgo); !ok {
			t.Errorf("empty kind = %T, expected *Malgo", b)
		}
	})
}
