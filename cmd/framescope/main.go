// Package main is the entry point for framescope, a terminal viewer for
// frame-indexed annotation timelines. It initializes configuration and
// services, then runs the Bubble Tea program.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/framescope/internal/app"
	"github.com/j-veylop/framescope/internal/config"
	"github.com/j-veylop/framescope/internal/db"
	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/services"
	"github.com/j-veylop/framescope/internal/ui/tabs/info"
	"github.com/j-veylop/framescope/internal/ui/tabs/strips"
	"github.com/j-veylop/framescope/internal/version"
)

// options are the command-line flags.
type options struct {
	demoFrames int
	demoSeed   uint64
	dbPath     string
	version    bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.version {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("framescope", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	fs.BoolVar(&opts.version, "v", false, "show version information")
	fs.BoolVar(&opts.version, "version", false, "show version information")
	fs.IntVar(&opts.demoFrames, "demo", 0, "seed a demo dataset with `N` frames before starting")
	fs.Uint64Var(&opts.demoSeed, "seed", 1, "random seed for --demo")
	fs.StringVar(&opts.dbPath, "db", "", "database `path` (overrides DATABASE_PATH)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected argument %q", fs.Arg(0))
		fmt.Fprintln(fs.Output(), err)
		fs.Usage()
		return opts, err
	}
	if opts.demoFrames < 0 {
		err := fmt.Errorf("--demo must be positive, got %d", opts.demoFrames)
		fmt.Fprintln(fs.Output(), err)
		return opts, err
	}
	return opts, nil
}

// run contains the main application logic, separated for cleaner error handling.
func run(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.dbPath != "" {
		cfg.DatabasePath = opts.dbPath
	}

	logFile, err := logger.Init(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger.Info("Starting framescope", "version", version.GetVersion(), "database", cfg.DatabasePath)

	if opts.demoFrames > 0 {
		if err := seedDemo(cfg.DatabasePath, opts.demoFrames, opts.demoSeed); err != nil {
			return fmt.Errorf("failed to seed demo dataset: %w", err)
		}
	}

	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	model := app.NewModel(svcManager)

	state := model.GetState()
	model.SetTabs([]app.Tab{
		strips.New(state, svcManager.Engine(), cfg.WheelZoomStep),
		info.New(state, cfg),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(), // drag to scrub, pan and select
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// seedDemo writes the demo dataset into the database at path, replacing any
// existing frames of the demo channels.
func seedDemo(path string, frames int, seed uint64) error {
	database, err := db.New(path)
	if err != nil {
		return err
	}
	defer database.Close()

	logger.Info("Seeding demo dataset", "frames", frames, "seed", seed)
	return database.SeedDemo(context.Background(), frames, seed)
}

// printUsage prints the command-line usage information.
func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(fs.Output(), `framescope - multi-resolution timeline viewer for frame annotations

Usage:
  framescope [flags]

Flags:`)
	fs.PrintDefaults()
	fmt.Fprintln(fs.Output(), `
Keyboard Shortcuts:
  1-2, Tab        Switch between tabs (Timeline, Info)
  z/x, +/-        Zoom in/out around the playhead
  a/d             Pan the visible range
  Left/Right      Step one frame
  Ctrl+drag       Select a frame range
  Ctrl+S          Save the viewer session
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  DATABASE_PATH         SQLite database path
  LOG_PATH, LOG_LEVEL   Log file and level (debug, info, warn, error)
  BINS_PER_TILE         Bins per tile (default: 4096)
  PYRAMID_BRANCHING     Frames-per-bin ratio between levels (default: 2)
  TILE_CACHE_CAPACITY   Tiles cached per channel (default: 64)
  AGGREGATION_WORKERS   Aggregation worker count (default: CPU count)
  METRICS_ADDR          Serve Prometheus metrics on this address
  WATCH_DEBOUNCE        Delay before reloading external edits (default: 100ms)
  NOTIFY_ERRORS         Desktop notification when a channel fails

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/framescope/.env
  - ~/.framescope/.env`)
}
