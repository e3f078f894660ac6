package pcm

import (
	"errors"
	"io"
	"time"

	"github.com/gen2brain/malgo"
)

// Common decode errors
var (
	ErrMalformed   = errors.New("malformed audio data")
	ErrRead        = errors.New("failed to read audio data")
	ErrUnsupported = errors.New("unsupported audio format")
)

// Clip holds fully decoded, interleaved PCM audio ready for a playback
// backend. Data layout is little-endian frames of Channels samples each.
type Clip struct {
	Data       []byte
	Channels   uint32
	SampleRate uint32
	Format     malgo.FormatType
}

// SampleBytes returns the width of one sample in bytes for the clip's
// format. Unknown formats report 2, matching the S16 default used
// throughout playback.
func (c *Clip) SampleBytes() int {
	return formatWidth(c.Format)
}

// FrameBytes returns the size of one interleaved frame in bytes.
func (c *Clip) FrameBytes() int {
	return c.SampleBytes() * int(c.Channels)
}

// Frames returns the number of complete frames in the clip.
func (c *Clip) Frames() int {
	fb := c.FrameBytes()
	if fb == 0 {
		return 0
	}
	return len(c.Data) / fb
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Decoder turns one encoded audio container into a Clip.
type Decoder interface {
	// Decode reads encoded audio from reader and returns interleaved PCM.
	Decode(reader io.Reader) (*Clip, error)

	// CanDecode reports whether the decoder recognizes the filename.
	CanDecode(filename string) bool

	// FormatName returns the short name of the handled container.
	FormatName() string
}

func formatWidth(format malgo.FormatType) int {
	switch format {
	case malgo.FormatS24:
		return 3
	case malgo.FormatS32, malgo.FormatF32:
		return 4
	default:
		return 2
	}
}

// formatForDepth maps a container bit depth onto the device sample format.
func formatForDepth(bits uint) (malgo.FormatType, error) {
	switch bits {
	case 16:
		return malgo.FormatS16, nil
	case 24:
		return malgo.FormatS24, nil
	case 32:
		return malgo.FormatS32, nil
	default:
		return malgo.FormatUnknown, ErrUnsupported
	}
}

// appendSample packs one integer sample as little-endian bytes of the
// given width onto dst.
func appendSample(dst []byte, v int, width int) []byte {
	switch width {
	case 2:
		return append(dst, byte(v), byte(v>>8))
	case 3:
		return append(dst, byte(v), byte(v>>8), byte(v>>16))
	case 4:
		return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return dst
}
