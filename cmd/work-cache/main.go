package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/theimaginaryfoundation/novel-harvest/harvest"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/extract"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/fetch"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/logging"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/settings"
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

	ids, err := harvest.LoadSeeds(cfg.SeedsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	log.Info("seeds loaded", zap.String("path", cfg.SeedsPath), zap.Int("works", len(ids)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crawler := &harvest.Crawler{
		Fetcher:    fetch.New(&http.Client{}, cfg.Fetch.Options(), log),
		URLs:       cfg.Fetch.URLs(),
		Extractors: extract.New(log),
		MaxPages:   cfg.MaxPages,
		Log:        log,
	}
	res, err := harvest.BuildCache(ctx, crawler, ids, harvest.CacheOptions{
		CacheDir:  cfg.CacheDir,
		NumChunks: cfg.NumChunks,
		Workers:   cfg.Workers,
		MaxChunks: cfg.MaxChunks,
		DirMode:   0o755,
		FileMode:  0o644,
	})
	if err != nil {
		log.Error("cache phase failed", zap.Error(err), zap.Int("chunks_written", res.ChunksWritten))
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "chunks_written=%d works=%d skipped=%d start_index=%d cache_dir=%s\n",
		res.ChunksWritten, res.Works, res.Skipped, res.StartIndex, cfg.CacheDir)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.SeedsPath, "seeds", cfg.SeedsPath, "Newline-delimited work URL list")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for cache_<i>.json chunk files")
	fs.IntVar(&cfg.NumChunks, "chunks", cfg.NumChunks, "Number of chunks the seed list is split into")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent workers per chunk")
	fs.IntVar(&cfg.MaxChunks, "max-chunks", cfg.MaxChunks, "Stop after writing this many chunks (0 = all)")
	fs.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "Max review/comment pages per work (0 = until an empty page)")
	cfg.Fetch.RegisterFlags(fs)
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML settings file (defaults to $"+settings.EnvConfig+")")
	fs.BoolVar(&cfg.Debug, "debug", false, "Limited run: write a single chunk")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug-level logging")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/work-cache -seeds work_list/urls.txt -debug")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/work-cache -chunks 100 -workers 4 -rps 2")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := settings.ApplyFile(fs, cfg.ConfigPath); err != nil {
		return Config{}, err
	}

	if cfg.Debug {
		cfg.MaxChunks = 1
	}
	cfg.SeedsPath = filepath.Clean(cfg.SeedsPath)
	cfg.CacheDir = filepath.Clean(cfg.CacheDir)
	return cfg, nil
}
