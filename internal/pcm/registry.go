package pcm

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// mimeFormats maps sniffed MIME types onto registered decoder names.
// mimetype resolves aliases, so one canonical type per format suffices.
var mimeFormats = map[string]string{
	"audio/wav":    "WAV",
	"audio/mpeg":   "MP3",
	"audio/aiff":   "AIFF",
	"audio/x-aiff": "AIFF",
}

// Registry selects a Decoder for a stream by magic bytes with an
// extension fallback.
type Registry struct {
	decoders []Decoder
}

// NewRegistry creates an empty decoder registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make([]Decoder, 0)}
}

// NewDefaultRegistry creates a registry with the built-in WAV, MP3 and
// AIFF decoders registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewWavDecoder())
	r.Register(NewMp3Decoder())
	r.Register(NewAiffDecoder())

	slog.Debug("default decoder registry initialized", "formats", r.Formats())
	return r
}

// Register adds a decoder. Nil decoders are ignored with a warning.
func (r *Registry) Register(dec Decoder) {
	if dec == nil {
		slog.Warn("attempted to register nil decoder")
		return
	}

	r.decoders = append(r.decoders, dec)
	slog.Debug("decoder registered",
		"format", dec.FormatName(),
		"total_decoders", len(r.decoders))
}

// Formats returns the names of all registered formats.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.decoders))
	for _, dec := range r.decoders {
		names = append(names, dec.FormatName())
	}
	return names
}

// ByExtension returns the first registered decoder that recognizes the
// filename, or nil.
func (r *Registry) ByExtension(filename string) Decoder {
	if filename == "" {
		return nil
	}
	for _, dec := range r.decoders {
		if dec.CanDecode(filename) {
			slog.Debug("decoder selected by extension",
				"filename", filename,
				"format", dec.FormatName())
			return dec
		}
	}
	slog.Debug("no decoder matches filename", "filename", filename)
	return nil
}

// Sniff selects a decoder by magic bytes, falling back to the filename
// extension when the content is unrecognized.
func (r *Registry) Sniff(filename string, reader io.Reader) Decoder {
	header := make([]byte, 512)
	n, err := reader.Read(header)
	if err != nil && err != io.EOF {
		slog.Error("failed to read header for sniffing", "filename", filename, "error", err)
		return r.ByExtension(filename)
	}
	if n == 0 {
		return r.ByExtension(filename)
	}

	mtype := mimetype.Detect(header[:n])
	slog.Debug("magic byte detection",
		"filename", filename,
		"mime", mtype.String(),
		"bytes_analyzed", n)

	for mime, format := range mimeFormats {
		if !mtype.Is(mime) {
			continue
		}
		if dec := r.byFormat(format); dec != nil {
			slog.Debug("decoder selected by magic bytes",
				"filename", filename,
				"format", dec.FormatName(),
				"mime", mtype.String())
			return dec
		}
	}

	slog.Debug("unrecognized magic bytes, falling back to extension",
		"filename", filename,
		"mime", mtype.String())
	return r.ByExtension(filename)
}

func (r *Registry) byFormat(name string) Decoder {
	for _, dec := range r.decoders {
		if strings.EqualFold(dec.FormatName(), name) {
			return dec
		}
	}
	return nil
}

// Decode sniffs the stream and decodes it with the matching decoder.
func (r *Registry) Decode(filename string, reader io.Reader) (*Clip, error) {
	// Buffer once so sniffing does not consume the decoder's input.
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio content: %w", err)
	}

	dec := r.Sniff(filename, bytes.NewReader(raw))
	if dec == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
	}

	clip, err := dec.Decode(bytes.NewReader(raw))
	if err != nil {
		slog.Error("decode failed",
			"filename", filename,
			"format", dec.FormatName(),
			"error", err)
		return nil, err
	}

	slog.Debug("decode completed",
		"filename", filename,
		"format", dec.FormatName(),
		"channels", clip.Channels,
		"sample_rate", clip.SampleRate,
		"bytes", len(clip.Data))

	return clip, nil
}
