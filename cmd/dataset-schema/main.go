package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theimaginaryfoundation/novel-harvest/harvest/schema"
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

	paths, err := schema.Write(cfg.OutputDir, 0o755, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "schemas_written=%d out=%s\n", len(paths), cfg.OutputDir)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.OutputDir, "schema-dir", cfg.OutputDir, "Directory to write *.schema.json files into")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML settings file (defaults to $"+settings.EnvConfig+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := settings.ApplyFile(fs, cfg.ConfigPath); err != nil {
		return Config{}, err
	}
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	return cfg, nil
}
