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
	"github.com/theimaginaryfoundation/novel-harvest/harvest/fileutils"
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
	if !fileutils.FileExists(cfg.CacheDir) {
		fmt.Fprintf(os.Stderr, "cache dir %s does not exist (run work-cache first)\n", cfg.CacheDir)
		os.Exit(2)
	}

	log := logging.New(cfg.Verbose)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crawler := &harvest.Crawler{
		Fetcher:    fetch.New(&http.Client{}, cfg.Fetch.Options(), log),
		URLs:       cfg.Fetch.URLs(),
		Extractors: extract.New(log),
		Log:        log,
	}
	res, err := harvest.Hydrate(ctx, crawler, harvest.HydrateOptions{
		CacheDir:         cfg.CacheDir,
		OutputDir:        cfg.OutputDir,
		Workers:          cfg.Workers,
		MaxChunks:        cfg.MaxChunks,
		MaxWorksPerChunk: cfg.MaxWorksPerChunk,
		DirMode:          0o755,
		FileMode:         0o644,
	})
	if err != nil {
		log.Error("hydrate phase failed", zap.Error(err), zap.Int("chunks_written", res.ChunksWritten))
		os.Exit(1)
	}

	indexPath := ""
	if cfg.Reindex {
		indexPath = cfg.IndexPath
		rows, err := harvest.RebuildIndex(cfg.OutputDir, indexPath)
		if err != nil {
			log.Error("index rebuild failed", zap.Error(err))
			os.Exit(1)
		}
		log.Info("index rebuilt", zap.String("path", indexPath), zap.Int("rows", rows))
	}

	fmt.Fprintf(os.Stdout, "chunks_written=%d works=%d skipped=%d out=%s index=%s\n",
		res.ChunksWritten, res.Works, res.Skipped, cfg.OutputDir, indexPath)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory holding cache_<i>.json files from work-cache")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory for novel_work_<i>.json dataset files")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent workers per chunk")
	fs.IntVar(&cfg.MaxChunks, "max-chunks", cfg.MaxChunks, "Stop after writing this many chunks (0 = all)")
	fs.IntVar(&cfg.MaxWorksPerChunk, "max-works", cfg.MaxWorksPerChunk, "Hydrate only the first N works of each cache file (0 = all)")
	fs.BoolVar(&cfg.Reindex, "reindex", cfg.Reindex, "Rebuild index.jsonl from all dataset files after the run")
	fs.StringVar(&cfg.IndexPath, "index", "", "Index path (defaults to <out>/index.jsonl)")
	cfg.Fetch.RegisterFlags(fs)
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML settings file (defaults to $"+settings.EnvConfig+")")
	fs.BoolVar(&cfg.Debug, "debug", false, "Limited run: 2 cache files, 10 works each")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug-level logging")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/work-hydrate -debug")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/work-hydrate -cache-dir cache_novel_work -out novel_work -workers 4")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := settings.ApplyFile(fs, cfg.ConfigPath); err != nil {
		return Config{}, err
	}

	if cfg.Debug {
		cfg.MaxChunks = 2
		cfg.MaxWorksPerChunk = 10
	}
	cfg.CacheDir = filepath.Clean(cfg.CacheDir)
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(cfg.OutputDir, "index.jsonl")
	}
	cfg.IndexPath = filepath.Clean(cfg.IndexPath)
	return cfg, nil
}
