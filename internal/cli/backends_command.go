package cli

import (
	"github.com/spf13/cobra"

	"cueplay.click/internal/backend"
)

// newBackendsCommand creates the backends command listing available
// audio backends
func newBackendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List audio backends and what auto would pick",
		RunE:  runBackends,
	}
}

// runBackends executes the backends command
func runBackends(cmd *cobra.Command, args []string) error {
	factory := backend.NewFactory()
	optimal := backend.DetectOptimalKind()

	cmd.Println("Available backends:")
	for _, kind := range factory.Supported() {
		marker := " "
		switch kind {
		case backend.KindAuto:
			continue
		case optimal:
			marker = "*"
		}
		cmd.Printf("  %s %s\n", marker, kind)
	}
	cmd.Printf("\nauto selects: %s\n", optimal)

	if backend.IsWSL() {
		cmd.Println("WSL detected: native device access may be unavailable.")
	}
	return nil
}
