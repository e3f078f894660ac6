// Package cli implements the cueplay command-line interface: playing a
// file or catalog asset through the playback controller, analyzing the
// transition journal, listing backends, and inspecting media files.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"cueplay.click/internal/config"
	"cueplay.click/internal/fs"
	"cueplay.click/internal/player"
)

const Version = "0.3.0"

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	configManager    *config.Manager
	fsFactory        fs.Factory
	terminalDetector TerminalDetector

	// newEngine is swappable so tests can substitute a stub-backed engine.
	newEngine func(kind string) (*player.Engine, error)
}

// NewCLI creates a new CLI instance
func NewCLI() *CLI {
	slog.Debug("creating new CLI instance")

	rootCmd := &cobra.Command{
		Use:   "cueplay [flags] FILE|asset:NAME",
		Short: "Audio playback controller",
		Long: "Cueplay prepares and plays a single audio file or catalog asset\n" +
			"through a pluggable native backend, journaling every state\n" +
			"transition along the way.",
		Args: cobra.MaximumNArgs(1),
		RunE: runPlayE,
	}

	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newBackendsCommand())
	rootCmd.AddCommand(newInspectCommand())

	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	rootCmd.Flags().Float64("volume", 1.0, "Playback volume (0.0 to 1.0)")
	rootCmd.Flags().Float64("pan", 0, "Stereo pan (-1.0 left to 1.0 right)")
	rootCmd.Flags().Int("loops", 0, "Extra passes after the first (-1 = forever)")
	rootCmd.Flags().Float64("speed", 1.0, "Playback rate (1.0 = normal)")
	rootCmd.Flags().Duration("seek", 0, "Start position (e.g. 1m30s)")
	rootCmd.Flags().String("backend", "", "Audio backend (auto, malgo, beep, stub)")
	rootCmd.Flags().Duration("poll-interval", 0, "Progress poll period")
	rootCmd.Flags().Bool("silent", false, "Prepare only, no playback")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	return &CLI{
		rootCmd: rootCmd,
		// Remaining fields are initialized lazily in Run.
	}
}

type cliContextKey struct{}

// contextWithCLI stores the CLI instance in a context for command handlers
func contextWithCLI(cli *CLI) context.Context {
	return context.WithValue(context.Background(), cliContextKey{}, cli)
}

// cliFromContext extracts the CLI instance from a command context
func cliFromContext(ctx context.Context) *CLI {
	if cli, ok := ctx.Value(cliContextKey{}).(*CLI); ok {
		return cli
	}
	return nil
}

// Run executes the CLI with the given arguments and I/O streams
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	// Version requests skip all system initialization.
	if len(args) > 1 && (args[1] == "--version" || args[1] == "-v") {
		fmt.Fprintf(stdout, "cueplay version %s\n", Version)
		return 0
	}

	c.initializeSystems()

	c.rootCmd.SetArgs(args[1:]) // Skip program name
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)
	c.rootCmd.SetContext(contextWithCLI(c))

	if err := c.rootCmd.Execute(); err != nil {
		slog.Error("cobra execution failed", "error", err)
		return 1
	}

	return 0
}

// initializeSystems lazily fills in CLI components not injected by tests
func (c *CLI) initializeSystems() {
	if c.fsFactory == nil {
		c.fsFactory = fs.NewDefaultFactory()
	}
	if c.configManager == nil {
		c.configManager = config.NewManager(c.fsFactory.Production(), os.Getenv)
	}
	if c.terminalDetector == nil {
		c.terminalDetector = &DefaultTerminalDetector{}
	}
	if c.newEngine == nil {
		c.newEngine = player.NewEngine
	}
}

// handleVersionFlag checks and handles the version flag
// Returns true if version was handled and processing should stop
func handleVersionFlag(cmd *cobra.Command) bool {
	version, _ := cmd.Flags().GetBool("version")
	if version {
		cmd.Printf("cueplay version %s\n", Version)
		return true
	}
	return false
}

// loadAndValidateConfig loads configuration from flags and files, applies
// overrides, and validates the result
func loadAndValidateConfig(cmd *cobra.Command, cli *CLI) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = cli.configManager.LoadFromFile(configFile)
		if err != nil {
			cmd.PrintErrf("Error loading config: %v\n", err)
			slog.Error("config load failed", "file", configFile, "error", err)
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		cfg, err = cli.configManager.Load()
		if err != nil {
			cmd.PrintErrf("Error loading config: %v\n", err)
			slog.Error("config load failed", "error", err)
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	cfg = cli.configManager.ApplyEnvironmentOverrides(cfg)
	applyFlagOverrides(cmd, cfg)

	if err := cli.configManager.Validate(cfg); err != nil {
		cmd.PrintErrf("Error: invalid configuration: %v\n", err)
		slog.Error("config validation failed", "error", err)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyFlagOverrides copies explicitly set command line flags onto cfg
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("volume") {
		cfg.Volume, _ = flags.GetFloat64("volume")
		slog.Debug("volume override applied", "value", cfg.Volume)
	}
	if flags.Changed("pan") {
		cfg.Pan, _ = flags.GetFloat64("pan")
		slog.Debug("pan override applied", "value", cfg.Pan)
	}
	if flags.Changed("loops") {
		cfg.Loops, _ = flags.GetInt("loops")
		slog.Debug("loops override applied", "value", cfg.Loops)
	}
	if flags.Changed("speed") {
		cfg.Speed, _ = flags.GetFloat64("speed")
		slog.Debug("speed override applied", "value", cfg.Speed)
	}
	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
		slog.Debug("backend override applied", "value", cfg.Backend)
	}
	if flags.Changed("poll-interval") {
		d, _ := flags.GetDuration("poll-interval")
		cfg.PollIntervalMS = int(d.Milliseconds())
		slog.Debug("poll interval override applied", "value", cfg.PollIntervalMS)
	}
}

// setupLogging configures slog: stderr at the configured level plus a
// rotating debug-level log file when file logging is enabled
func setupLogging(cli *CLI, cfg *config.Config, stderrWriter io.Writer) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelWarn
	}

	stderrHandler := slog.NewTextHandler(stderrWriter, &slog.HandlerOptions{
		Level: level,
	})
	handlers := []slog.Handler{stderrHandler}

	if cfg.FileLogging != nil && cfg.FileLogging.Enabled {
		logFilePath := cli.configManager.ResolveLogFilePath(cfg.FileLogging.Filename)

		logDir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			// Continue without file logging rather than failing.
			slog.Error("failed to create log directory", "path", logDir, "error", err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    cfg.FileLogging.MaxSizeMB,
				MaxBackups: cfg.FileLogging.MaxBackups,
				MaxAge:     cfg.FileLogging.MaxAgeDays,
				Compress:   cfg.FileLogging.Compress,
			}
			fileHandler := slog.NewTextHandler(fileWriter, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})
			handlers = append(handlers, fileHandler)
			slog.Debug("file logging enabled", "path", logFilePath)
		}
	}

	slog.SetDefault(slog.New(NewMultiLevelHandler(handlers...)))

	slog.Debug("logging setup completed",
		"level", level.String(),
		"handlers", len(handlers))
}

// formatPosition renders a playback position as m:ss.t
func formatPosition(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	tenths := int(d / (time.Second / 10))
	minutes := tenths / 600
	seconds := (tenths % 600) / 10
	return fmt.Sprintf("%d:%02d.%d", minutes, seconds, tenths%10)
}
