package pcm

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/go-audio/aiff"
)

// AiffDecoder decodes AIFF/AIFC containers via go-audio.
type AiffDecoder struct{}

// NewAiffDecoder creates an AIFF decoder.
func NewAiffDecoder() *AiffDecoder {
	slog.Debug("creating AIFF decoder")
	return &AiffDecoder{}
}

// FormatName returns the name of the format this decoder handles.
func (d *AiffDecoder) FormatName() string {
	return "AIFF"
}

// CanDecode checks if this decoder can handle the given filename.
func (d *AiffDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	ok := strings.HasSuffix(lower, ".aiff") || strings.HasSuffix(lower, ".aif")

	slog.Debug("AIFF decoder file check", "filename", filename, "can_decode", ok)
	return ok
}

// Decode reads an AIFF stream and returns its interleaved PCM frames.
func (d *AiffDecoder) Decode(reader io.Reader) (*Clip, error) {
	slog.Debug("starting AIFF decode")

	// go-audio/aiff wants a ReadSeeker, buffer the whole stream first.
	raw, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to buffer AIFF stream", "error", err)
		return nil, ErrRead
	}
	if len(raw) == 0 {
		return nil, ErrMalformed
	}

	dec := aiff.NewDecoder(bytes.NewReader(raw))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		slog.Error("invalid AIFF container")
		return nil, ErrMalformed
	}

	sampleRate := uint32(dec.SampleRate)
	channels := uint32(dec.NumChans)
	bitDepth := uint(dec.SampleBitDepth())
	if channels == 0 || sampleRate == 0 || bitDepth == 0 {
		slog.Error("invalid AIFF format parameters",
			"channels", channels,
			"sample_rate", sampleRate,
			"bit_depth", bitDepth)
		return nil, ErrMalformed
	}

	sampleFormat, err := formatForDepth(bitDepth)
	if err != nil {
		slog.Error("unsupported AIFF bit depth", "bits", bitDepth)
		return nil, err
	}

	slog.Debug("AIFF format detected",
		"sample_rate", sampleRate,
		"channels", channels,
		"bits_per_sample", bitDepth)

	pcmBuf, err := dec.FullPCMBuffer()
	if err != nil {
		slog.Error("failed to read AIFF samples", "error", err)
		return nil, ErrRead
	}
	if pcmBuf == nil || len(pcmBuf.Data) == 0 {
		slog.Error("no audio frames in AIFF stream")
		return nil, ErrMalformed
	}

	// go-audio hands back big-endian container samples as ints, pack
	// them little-endian for the device.
	width := formatWidth(sampleFormat)
	data := make([]byte, 0, len(pcmBuf.Data)*width)
	for _, v := range pcmBuf.Data {
		data = appendSample(data, v, width)
	}

	clip := &Clip{
		Data:       data,
		Channels:   channels,
		SampleRate: sampleRate,
		Format:     sampleFormat,
	}

	slog.Info("AIFF decode completed",
		"samples", len(pcmBuf.Data),
		"bytes", len(clip.Data),
		"channels", clip.Channels,
		"sample_rate", clip.SampleRate,
		"duration_ms", clip.Duration().Milliseconds())

	return clip, nil
}
