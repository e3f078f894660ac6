package pcm

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/youpy/go-wav"
)

// WavDecoder decodes RIFF/WAVE containers.
type WavDecoder struct{}

// NewWavDecoder creates a WAV decoder.
func NewWavDecoder() *WavDecoder {
	slog.Debug("creating WAV decoder")
	return &WavDecoder{}
}

// FormatName returns the name of the format this decoder handles.
func (d *WavDecoder) FormatName() string {
	return "WAV"
}

// CanDecode checks if this decoder can handle the given filename.
func (d *WavDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	ok := strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")

	slog.Debug("WAV decoder file check", "filename", filename, "can_decode", ok)
	return ok
}

// Decode reads a WAV stream and returns its interleaved PCM frames.
func (d *WavDecoder) Decode(reader io.Reader) (*Clip, error) {
	slog.Debug("starting WAV decode")

	// youpy/go-wav wants a ReadSeeker, buffer the whole stream first.
	raw, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to buffer WAV stream", "error", err)
		return nil, ErrRead
	}
	if len(raw) == 0 {
		return nil, ErrMalformed
	}

	wr := wav.NewReader(bytes.NewReader(raw))
	format, err := wr.Format()
	if err != nil {
		slog.Error("failed to read WAV format chunk", "error", err)
		return nil, ErrMalformed
	}
	if format.NumChannels == 0 || format.SampleRate == 0 {
		slog.Error("invalid WAV format parameters",
			"channels", format.NumChannels,
			"sample_rate", format.SampleRate)
		return nil, ErrMalformed
	}

	sampleFormat, err := formatForDepth(uint(format.BitsPerSample))
	if err != nil {
		slog.Error("unsupported WAV bit depth", "bits", format.BitsPerSample)
		return nil, err
	}

	slog.Debug("WAV format detected",
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"bits_per_sample", format.BitsPerSample)

	channels := int(format.NumChannels)
	width := formatWidth(sampleFormat)
	var data []byte
	frames := 0

	for {
		samples, err := wr.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Error("failed to read WAV samples", "error", err)
			return nil, ErrRead
		}
		if len(samples) == 0 {
			break
		}

		for _, sample := range samples {
			for ch := 0; ch < channels; ch++ {
				// Missing channel values pack as silence.
				v := 0
				if ch < len(sample.Values) {
					v = sample.Values[ch]
				}
				data = appendSample(data, v, width)
			}
		}
		frames += len(samples)
	}

	if frames == 0 {
		slog.Error("no audio frames in WAV stream")
		return nil, ErrMalformed
	}

	clip := &Clip{
		Data:       data,
		Channels:   uint32(format.NumChannels),
		SampleRate: format.SampleRate,
		Format:     sampleFormat,
	}

	slog.Info("WAV decode completed",
		"frames", frames,
		"bytes", len(clip.Data),
		"channels", clip.Channels,
		"sample_rate", clip.SampleRate,
		"duration_ms", clip.Duration().Milliseconds())

	return clip, nil
}
