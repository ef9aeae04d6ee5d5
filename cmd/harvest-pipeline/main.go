package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/theimaginaryfoundation/novel-harvest/harvest"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/settings"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stages := allStages
	if cfg.OnlyStage != "" {
		stages = []string{cfg.OnlyStage}
	} else if cfg.FromStage != "" {
		stages = stagesFrom(stages, cfg.FromStage)
	}

	for _, stage := range stages {
		if stage == "export" && !dirHasChunks(cfg.OutputDir(), harvest.DatasetPrefix) {
			fmt.Fprintln(os.Stdout, "skip export: no dataset files in", cfg.OutputDir())
			continue
		}
		args, err := stageArgs(cfg, stage)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		if err := runGo(ctx, args...); err != nil {
			os.Exit(1)
		}
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.SeedsPath, "seeds", cfg.SeedsPath, "Newline-delimited work URL list")
	fs.StringVar(&cfg.BaseDir, "base-dir", cfg.BaseDir, "Directory holding cache, dataset, database and schemas")
	fs.StringVar(&cfg.CacheDirPath, "cache-dir", "", "Cache directory (defaults to <base-dir>/cache_novel_work)")
	fs.StringVar(&cfg.OutputDirPath, "out", "", "Dataset directory (defaults to <base-dir>/novel_work)")
	fs.StringVar(&cfg.DBFilePath, "db", "", "SQLite database (defaults to <base-dir>/novel_work.db)")
	fs.StringVar(&cfg.SchemaDirPath, "schema-dir", "", "Schema directory (defaults to <base-dir>/schemas)")
	fs.IntVar(&cfg.NumChunks, "chunks", cfg.NumChunks, "Number of chunks the seed list is split into")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent workers per chunk")
	fs.BoolVar(&cfg.Debug, "debug", false, "Limited run for the crawl stages")
	fs.StringVar(&cfg.FromStage, "from-stage", "", "Start at stage: "+strings.Join(allStages, "|"))
	fs.StringVar(&cfg.OnlyStage, "only-stage", "", "Run only one stage: "+strings.Join(allStages, "|"))
	fs.StringVar(&cfg.ConfigPath, "config", "", "YAML settings file passed to every stage")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug-level logging in every stage")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = strings.TrimSpace(os.Getenv(settings.EnvConfig))
	}
	// Stage flags are explicit on the child command line, so the file has to be applied here too.
	// Its layout keys land in the override flags above.
	if err := settings.ApplyFile(fs, cfg.ConfigPath); err != nil {
		return Config{}, err
	}
	cfg.FromStage = strings.ToLower(strings.TrimSpace(cfg.FromStage))
	cfg.OnlyStage = strings.ToLower(strings.TrimSpace(cfg.OnlyStage))
	cfg.SeedsPath = filepath.Clean(cfg.SeedsPath)
	cfg.BaseDir = filepath.Clean(cfg.BaseDir)
	return cfg, nil
}

// stageArgs returns the go command line for one stage.
func stageArgs(cfg Config, stage string) ([]string, error) {
	var args []string
	switch stage {
	case "cache":
		args = []string{
			"run", "./cmd/work-cache",
			"-seeds", cfg.SeedsPath,
			"-cache-dir", cfg.CacheDir(),
			"-chunks", fmt.Sprintf("%d", cfg.NumChunks),
			"-workers", fmt.Sprintf("%d", cfg.Workers),
		}
		if cfg.Debug {
			args = append(args, "-debug")
		}
	case "hydrate":
		args = []string{
			"run", "./cmd/work-hydrate",
			"-cache-dir", cfg.CacheDir(),
			"-out", cfg.OutputDir(),
			"-workers", fmt.Sprintf("%d", cfg.Workers),
			"-reindex=true",
		}
		if cfg.Debug {
			args = append(args, "-debug")
		}
	case "export":
		args = []string{
			"run", "./cmd/dataset-export",
			"-in", cfg.OutputDir(),
			"-db", cfg.DBPath(),
		}
	case "schema":
		return withConfig(cfg, []string{
			"run", "./cmd/dataset-schema",
			"-schema-dir", cfg.SchemaDir(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown stage: %s", stage)
	}
	if cfg.Verbose {
		args = append(args, "-verbose")
	}
	return withConfig(cfg, args), nil
}

func withConfig(cfg Config, args []string) []string {
	if cfg.ConfigPath == "" {
		return args
	}
	return append(args, "-config", cfg.ConfigPath)
}

func runGo(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "command failed:", "go "+strings.Join(args, " "))
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		return err
	}
	fmt.Fprintln(os.Stdout, "ok:", "go "+strings.Join(args, " "), "(", time.Since(start).Round(time.Millisecond).String()+")")
	return nil
}

func stagesFrom(stages []string, from string) []string {
	from = strings.ToLower(strings.TrimSpace(from))
	for i, s := range stages {
		if s == from {
			return stages[i:]
		}
	}
	return stages
}

func dirHasChunks(dir, prefix string) bool {
	files, err := harvest.ListChunkFiles(dir, prefix)
	return err == nil && len(files) > 0
}
