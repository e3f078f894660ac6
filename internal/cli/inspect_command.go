package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dhowden/tag"
	"github.com/spf13/cobra"

	"cueplay.click/internal/pcm"
)

// newInspectCommand creates the inspect command probing a media file
func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show decoded properties and metadata of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
}

// runInspect executes the inspect command
func runInspect(cmd *cobra.Command, args []string) error {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		return fmt.Errorf("CLI instance not found in context")
	}
	cli.initializeSystems()

	path := args[0]
	file, err := cli.fsFactory.Production().Open(path)
	if err != nil {
		cmd.PrintErrf("Error opening %s: %v\n", path, err)
		return fmt.Errorf("error opening %s: %w", path, err)
	}
	defer file.Close()

	cmd.Printf("%s\n", path)

	// Tags first; missing tags are normal for WAV and AIFF.
	meta, err := tag.ReadFrom(file)
	if err != nil {
		slog.Debug("no tag metadata", "path", path, "error", err)
	} else {
		printTagMetadata(cmd, meta)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("error rewinding %s: %w", path, err)
	}

	clip, err := pcm.NewDefaultRegistry().Decode(path, file)
	if err != nil {
		cmd.PrintErrf("Error decoding %s: %v\n", path, err)
		return fmt.Errorf("error decoding %s: %w", path, err)
	}

	cmd.Printf("  duration:    %s\n", formatPosition(clip.Duration()))
	cmd.Printf("  channels:    %d\n", clip.Channels)
	cmd.Printf("  sample rate: %d Hz\n", clip.SampleRate)
	cmd.Printf("  frames:      %d\n", clip.Frames())

	return nil
}

// printTagMetadata renders the non-empty tag fields
func printTagMetadata(cmd *cobra.Command, meta tag.Metadata) {
	if title := meta.Title(); title != "" {
		cmd.Printf("  title:       %s\n", title)
	}
	if artist := meta.Artist(); artist != "" {
		cmd.Printf("  artist:      %s\n", artist)
	}
	if album := meta.Album(); album != "" {
		cmd.Printf("  album:       %s\n", album)
	}
	if format := meta.Format(); format != "" {
		cmd.Printf("  tag format:  %s\n", format)
	}
}
