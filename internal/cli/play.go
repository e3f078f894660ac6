package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"cueplay.click/internal/catalog"
	"cueplay.click/internal/config"
	"cueplay.click/internal/journal"
	"cueplay.click/internal/media"
	"cueplay.click/internal/player"
)

// assetPrefix marks an argument as a catalog asset name rather than a
// file path.
const assetPrefix = "asset:"

// prepareTimeout bounds the wait for native backend prepare completion.
const prepareTimeout = 30 * time.Second

// runPlayE handles the default command: prepare and play one source
func runPlayE(cmd *cobra.Command, args []string) error {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		return fmt.Errorf("CLI instance not found in context")
	}

	if handleVersionFlag(cmd) {
		return nil
	}

	if len(args) == 0 {
		return cmd.Help()
	}

	cfg, err := loadAndValidateConfig(cmd, cli)
	if err != nil {
		return err
	}

	setupLogging(cli, cfg, cmd.ErrOrStderr())

	src, err := cli.resolveSource(cfg, args[0])
	if err != nil {
		cmd.PrintErrf("Error: %v\n", err)
		return err
	}

	engine, err := cli.newEngine(cfg.Backend)
	if err != nil {
		cmd.PrintErrf("Error initializing audio backend: %v\n", err)
		slog.Error("backend initialization failed", "backend", cfg.Backend, "error", err)
		return fmt.Errorf("error initializing audio backend: %w", err)
	}
	defer engine.Close()

	if cfg.PollIntervalMS > 0 {
		engine.SetPollInterval(time.Duration(cfg.PollIntervalMS) * time.Millisecond)
	}

	ctrl := engine.Controller(src)
	defer ctrl.Release()

	updates := make(chan player.Change, 64)
	unsubscribe := ctrl.Subscribe(func(ch player.Change) {
		updates <- ch
	})
	defer unsubscribe()

	// Attach the journal before Prepare so the preparing transition is
	// the first recorded row.
	if cfg.Journal != nil && cfg.Journal.Enabled {
		dbPath := cli.configManager.ResolveJournalPath(cfg.Journal.DatabasePath)
		db, err := journal.NewDatabase(dbPath)
		if err != nil {
			// Playback continues without journaling.
			slog.Warn("journal unavailable", "path", dbPath, "error", err)
		} else {
			defer db.Close()
			_, detach, err := journal.Attach(db, ctrl, engine.Kind())
			if err != nil {
				slog.Warn("journal attach failed", "error", err)
			} else {
				defer detach()
			}
		}
	}

	ctrl.Prepare()
	if err := waitPrepared(updates); err != nil {
		cmd.PrintErrf("Error preparing %s: %v\n", src, err)
		slog.Error("prepare failed", "source", src.String(), "error", err)
		return fmt.Errorf("error preparing %s: %w", src, err)
	}

	slog.Info("source prepared",
		"source", src.String(),
		"handle", ctrl.Handle(),
		"duration", ctrl.Duration(),
		"channels", ctrl.Channels())

	applyPlaybackProperties(cmd, cfg, ctrl)

	silent, _ := cmd.Flags().GetBool("silent")
	if silent {
		cmd.Printf("%s: %s, %d channel(s), backend %s\n",
			src, formatPosition(ctrl.Duration()), ctrl.Channels(), engine.Kind())
		return nil
	}

	return cli.runPlayback(cmd, ctrl, src, updates)
}

// applyPlaybackProperties pushes the configured playback properties onto
// the prepared controller
func applyPlaybackProperties(cmd *cobra.Command, cfg *config.Config, ctrl *player.Controller) {
	ctrl.SetVolume(cfg.Volume)
	ctrl.SetPan(cfg.Pan)
	ctrl.SetLoops(cfg.Loops)
	ctrl.SetSpeed(cfg.Speed)

	if cmd.Flags().Changed("seek") {
		to, _ := cmd.Flags().GetDuration("seek")
		slog.Debug("seeking before playback", "to", to)
		ctrl.SeekTo(to)
	}
}

// waitPrepared consumes transitions until the controller reaches
// Prepared, returning the prepare error if one occurred
func waitPrepared(updates <-chan player.Change) error {
	deadline := time.After(prepareTimeout)
	for {
		select {
		case ch := <-updates:
			switch ch.State {
			case player.StateError:
				return ch.Err
			case player.StatePrepared:
				return nil
			}
		case <-deadline:
			return fmt.Errorf("prepare timed out after %s", prepareTimeout)
		}
	}
}

// runPlayback starts playback and blocks until the run returns to
// Prepared, showing a live progress line on interactive terminals
func (c *CLI) runPlayback(cmd *cobra.Command, ctrl *player.Controller, src media.Source, updates <-chan player.Change) error {
	stdout := cmd.OutOrStdout()
	interactive := c.terminalDetector.IsTerminal(int(os.Stdout.Fd()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctrl.Play()

	var progressC <-chan time.Time
	if interactive {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		progressC = ticker.C
	}

	// After Play is issued the only Prepared transitions are run-end
	// ones (a short clip can finish before the first progress tick, so
	// a Playing transition is not guaranteed).
	stopping := false
	for {
		select {
		case ch := <-updates:
			switch ch.State {
			case player.StateError:
				if interactive {
					fmt.Fprintln(stdout)
				}
				cmd.PrintErrf("Error during playback: %v\n", ch.Err)
				slog.Error("playback failed", "source", src.String(), "error", ch.Err)
				return fmt.Errorf("playback failed: %w", ch.Err)
			case player.StatePrepared:
				if interactive {
					fmt.Fprint(stdout, "\r\033[K")
				}
				if ch.Ended {
					cmd.Printf("finished %s (%s)\n", src, formatPosition(ctrl.Duration()))
				} else {
					cmd.Printf("stopped %s at %s\n", src, formatPosition(ch.Position))
				}
				return nil
			}
		case <-sigCh:
			if stopping {
				slog.Warn("second interrupt, abandoning playback")
				return fmt.Errorf("interrupted")
			}
			stopping = true
			slog.Info("interrupt received, stopping playback")
			ctrl.Stop(nil)
		case <-progressC:
			fmt.Fprintf(stdout, "\r%s / %s",
				formatPosition(ctrl.CurrentTime()), formatPosition(ctrl.Duration()))
		}
	}
}

// resolveSource turns a CLI argument into a media source: an asset:NAME
// lookup through the catalog chain, or a file path rooted at the
// configured base path
func (c *CLI) resolveSource(cfg *config.Config, arg string) (media.Source, error) {
	if name, ok := strings.CutPrefix(arg, assetPrefix); ok {
		chain, err := c.buildCatalogChain(cfg)
		if err != nil {
			return media.Source{}, err
		}
		src, err := catalog.Source(chain, name)
		if err != nil {
			return media.Source{}, err
		}
		slog.Debug("asset resolved", "name", name, "source", src.String())
		return src, nil
	}

	var opts []media.SourceOption
	if cfg.BasePath != "" {
		opts = append(opts, media.WithBasePath(cfg.BasePath))
	}
	return media.File(arg, opts...), nil
}

// buildCatalogChain loads the configured catalogs plus any XDG assets
// file, in priority order
func (c *CLI) buildCatalogChain(cfg *config.Config) (*catalog.Chain, error) {
	fsys := c.fsFactory.Production()

	paths := append([]string{}, cfg.CatalogPaths...)
	for _, p := range config.NewXDGDirs().ConfigPaths("assets.json") {
		if exists, _ := afero.Exists(fsys, p); exists {
			paths = append(paths, p)
		}
	}

	var catalogs []catalog.Catalog
	for _, path := range paths {
		cat, err := loadCatalog(fsys, path)
		if err != nil {
			slog.Warn("skipping unusable catalog", "path", path, "error", err)
			continue
		}
		catalogs = append(catalogs, cat)
	}

	if len(catalogs) == 0 {
		return nil, fmt.Errorf("no usable catalogs configured (searched %d path(s))", len(paths))
	}

	slog.Debug("catalog chain built", "catalogs", len(catalogs))
	return catalog.NewChain("configured", catalogs...), nil
}

// loadCatalog loads one catalog path: a JSON file or a directory scan
func loadCatalog(fsys afero.Fs, path string) (catalog.Catalog, error) {
	if strings.HasSuffix(path, ".json") {
		return catalog.LoadJSONCatalog(fsys, path)
	}
	return catalog.ScanDirectory(fsys, path)
}
