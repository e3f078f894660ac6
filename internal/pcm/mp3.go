package pcm

import (
	"io"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Mp3Decoder decodes MPEG layer 3 streams. go-mp3 always emits 16-bit
// stereo PCM regardless of the source channel layout.
type Mp3Decoder struct{}

// NewMp3Decoder creates an MP3 decoder.
func NewMp3Decoder() *Mp3Decoder {
	slog.Debug("creating MP3 decoder")
	return &Mp3Decoder{}
}

// FormatName returns the name of the format this decoder handles.
func (d *Mp3Decoder) FormatName() string {
	return "MP3"
}

// CanDecode checks if this decoder can handle the given filename.
func (d *Mp3Decoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	ok := strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".mpeg")

	slog.Debug("MP3 decoder file check", "filename", filename, "can_decode", ok)
	return ok
}

// Decode reads an MP3 stream and returns its interleaved PCM frames.
func (d *Mp3Decoder) Decode(reader io.Reader) (*Clip, error) {
	slog.Debug("starting MP3 decode")

	dec, err := mp3.NewDecoder(reader)
	if err != nil {
		slog.Error("failed to open MP3 stream", "error", err)
		return nil, ErrMalformed
	}

	sampleRate := dec.SampleRate()
	if sampleRate <= 0 {
		slog.Error("invalid MP3 sample rate", "sample_rate", sampleRate)
		return nil, ErrMalformed
	}

	slog.Debug("MP3 format detected", "sample_rate", sampleRate, "channels", 2)

	// Length is known when the source seeks, use it to size the buffer.
	var data []byte
	if n := dec.Length(); n > 0 {
		data = make([]byte, 0, n)
	}

	buf := make([]byte, 4096)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Error("failed to read MP3 PCM data", "error", err)
			return nil, ErrRead
		}
		if n == 0 {
			break
		}
	}

	if len(data) == 0 {
		slog.Error("no audio frames in MP3 stream")
		return nil, ErrMalformed
	}

	clip := &Clip{
		Data:       data,
		Channels:   2,
		SampleRate: uint32(sampleRate),
		Format:     malgo.FormatS16,
	}

	slog.Info("MP3 decode completed",
		"bytes", len(clip.Data),
		"channels", clip.Channels,
		"sample_rate", clip.SampleRate,
		"duration_ms", clip.Duration().Milliseconds())

	return clip, nil
}
