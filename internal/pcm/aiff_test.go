package pcm

import (
	"bytes"
	"testing"
)

func TestAiffDecoderCanDecode(t *testing.T) {
	dec := NewAiffDecoder()

	testCases := []struct {
		filename string
		expected bool
	}{
		{"chime.aiff", true},
		{"chime.aif", true},
		{"CHIME.AIFF", true},
		{"chime.wav", false},
		{"chime.mp3", false},
		{"", false},
	}

	for _, tc := range testCases {
		if got := dec.CanDecode(tc.filename); got != tc.expected {
			t.Errorf("CanDecode(%q) = %v, expected %v", tc.filename, got, tc.expected)
		}
	}
}

func TestAiffDecoderDecodeInvalid(t *testing.T) {
	dec := NewAiffDecoder()

	t.Run("empty stream", func(t *testing.T) {
		if _, err := dec.Decode(bytes.NewReader(nil)); err != ErrMalformed {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("garbage stream", func(t *testing.T) {
		if _, err := dec.Decode(bytes.NewReader([]byte("FORMnot really aiff"))); err == nil {
			t.Fatal("expected error for garbage input")
		}
	})
}

func TestAiffDecoderInterface(t *testing.T) {
	var _ Decoder = NewAiffDecoder()

	if name := NewAiffDecoder().FormatName(); name != "AIFF" {
		t.Errorf("FormatName() = %q, expected AIFF", name)
	}
}
