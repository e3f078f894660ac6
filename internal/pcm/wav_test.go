package pcm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gen2brain/malgo"
)

// makeWAV builds a minimal 16-bit PCM RIFF/WAVE container around the
// given interleaved sample values.
func makeWAV(channels, sampleRate int, values []int16) []byte {
	dataLen := len(values) * 2
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	for _, v := range values {
		binary.Write(&buf, binary.LittleEndian, v)
	}

	return buf.Bytes()
}

func TestWavDecoderCanDecode(t *testing.T) {
	dec := NewWavDecoder()

	testCases := []struct {
		filename string
		expected bool
	}{
		{"click.wav", true},
		{"CLICK.WAV", true},
		{"tone.wave", true},
		{"click.mp3", false},
		{"click.aiff", false},
		{"", false},
		{"wav", false},
	}

	for _, tc := range testCases {
		if got := dec.CanDecode(tc.filename); got != tc.expected {
			t.Errorf("CanDecode(%q) = %v, expected %v", tc.filename, got, tc.expected)
		}
	}
}

func TestWavDecoderDecode(t *testing.T) {
	dec := NewWavDecoder()

	t.Run("stereo 16-bit round trip", func(t *testing.T) {
		values := []int16{100, -100, 2000, -2000, 0, 32767, -32768, 1}
		wavData := makeWAV(2, 44100, values)

		clip, err := dec.Decode(bytes.NewReader(wavData))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}

		if clip.Channels != 2 {
			t.Errorf("Channels = %d, expected 2", clip.Channels)
		}
		if clip.SampleRate != 44100 {
			t.Errorf("SampleRate = %d, expected 44100", clip.SampleRate)
		}
		if clip.Format != malgo.FormatS16 {
			t.Errorf("Format = %v, expected FormatS16", clip.Format)
		}
		if clip.Frames() != 4 {
			t.Errorf("Frames() = %d, expected 4", clip.Frames())
		}

		// PCM bytes should survive the decode unchanged.
		var expected []byte
		for _, v := range values {
			expected = append(expected, byte(v), byte(uint16(v)>>8))
		}
		if !bytes.Equal(clip.Data, expected) {
			t.Errorf("Data = %v, expected %v", clip.Data, expected)
		}
	})

	t.Run("mono duration", func(t *testing.T) {
		values := make([]int16, 2000)
		wavData := makeWAV(1, 8000, values)

		clip, err := dec.Decode(bytes.NewReader(wavData))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got := clip.Duration().Milliseconds(); got != 250 {
			t.Errorf("Duration = %dms, expected 250ms", got)
		}
	})

	t.Run("empty stream", func(t *testing.T) {
		_, err := dec.Decode(bytes.NewReader(nil))
		if err != ErrMalformed {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("garbage stream", func(t *testing.T) {
		_, err := dec.Decode(bytes.NewReader([]byte("definitely not a wav file")))
		if err == nil {
			t.Fatal("expected error for garbage input")
		}
	})
}
