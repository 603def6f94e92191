package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/carbonix/aploghandler/pkg/aplog"
	"github.com/carbonix/aploghandler/pkg/config"
	"github.com/carbonix/aploghandler/pkg/logging"
	"github.com/carbonix/aploghandler/pkg/registry"
)

var version = "0.1.0-dev"

func main() {
	filePath := flag.String("file_path", "", "Path to the .bin or .tlog log file")
	output := flag.String("output", "", "Output directory (overrides config)")
	configPath := flag.String("config", "", "Path to config file (TOML or YAML)")
	useRegistry := flag.Bool("registry", false, "Track processed logs and skip already-converted files")
	force := flag.Bool("force", false, "Re-process even when the log is in the registry")
	dump := flag.String("dump", "", "Dump decoded records of one message type as CSV to stdout and exit")
	logLevel := flag.String("log_level", "", "Log level (overrides config)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("aploghandler", version)
		return
	}
	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "no log file given; try --file_path <file> or --version")
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = *loaded
	}
	if *output != "" {
		cfg.Output.Dir = *output
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *useRegistry {
		cfg.Registry.Enabled = true
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := aplog.NewHandler(*filePath, aplog.Options{
		OutputDir:    cfg.Output.Dir,
		FlushRows:    cfg.Output.FlushRows,
		CubePatterns: cfg.Metadata.CubePatterns,
		Version:      version,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *dump != "" {
		if err := h.Dump(ctx, *dump, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	var store *registry.Store
	if cfg.Registry.Enabled {
		store, err = registry.Open(cfg.Registry.Dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()

		entry, err := store.Get(h.UID())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if entry != nil && !*force {
			log.Info().
				Str("uid", h.UID()).
				Time("processed_at", entry.ProcessedAt).
				Msg("log already processed, skipping (use --force to re-run)")
			return
		}
	}

	meta, err := h.ProcessLog(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	res, err := h.ExtractParquet(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if store != nil {
		err := store.Put(&registry.Entry{
			UID:         h.UID(),
			FileName:    h.FileName(),
			LogType:     string(h.LogType()),
			CubeID:      meta.CubeID,
			BootNumber:  meta.BootNumber,
			StartTime:   meta.StartTime,
			ProcessedAt: time.Now().UTC(),
			OutputPath:  res.Root,
			Rows:        res.Stats.RowsWritten,
			RunID:       res.RunID,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
