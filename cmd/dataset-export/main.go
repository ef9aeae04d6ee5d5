package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/theimaginaryfoundation/novel-harvest/harvest/logging"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/settings"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	log := logging.New(cfg.Verbose)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := export(ctx, cfg, log)
	if err != nil {
		log.Error("export failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "files=%d works=%d db=%s\n", res.Files, res.Works, cfg.DBPath)
}

func export(ctx context.Context, cfg Config, log *zap.Logger) (store.ExportResult, error) {
	s, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return store.ExportResult{}, err
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		return store.ExportResult{}, err
	}
	return s.ExportDir(ctx, cfg.InputDir)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InputDir, "in", cfg.InputDir, "Directory holding novel_work_<i>.json dataset files")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (created if missing)")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML settings file (defaults to $"+settings.EnvConfig+")")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug-level logging")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/dataset-export -in novel_work -db novel_work.db")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := settings.ApplyFile(fs, cfg.ConfigPath); err != nil {
		return Config{}, err
	}
	cfg.InputDir = filepath.Clean(cfg.InputDir)
	cfg.DBPath = filepath.Clean(cfg.DBPath)
	return cfg, nil
}
