package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
)

var allStages = []string{"cache", "hydrate", "export", "schema"}

type Config struct {
	SeedsPath string
	BaseDir   string

	// Layout overrides; empty means the default name under BaseDir.
	CacheDirPath  string
	OutputDirPath string
	DBFilePath    string
	SchemaDirPath string

	NumChunks int
	Workers   int
	Debug     bool

	FromStage string
	OnlyStage string

	ConfigPath string
	Verbose    bool
}

func (c Config) CacheDir() string  { return c.under(c.CacheDirPath, "cache_novel_work") }
func (c Config) OutputDir() string { return c.under(c.OutputDirPath, "novel_work") }
func (c Config) DBPath() string    { return c.under(c.DBFilePath, "novel_work.db") }
func (c Config) SchemaDir() string { return c.under(c.SchemaDirPath, "schemas") }

func (c Config) under(override, name string) string {
	if override != "" {
		return filepath.Clean(override)
	}
	return filepath.Join(c.BaseDir, name)
}

func (c Config) Validate() error {
	if c.SeedsPath == "" {
		return errors.New("missing -seeds")
	}
	if c.BaseDir == "" {
		return errors.New("missing -base-dir")
	}
	if c.NumChunks <= 0 || c.Workers <= 0 {
		return errors.New("chunks/workers must be > 0")
	}
	if c.CacheDir() == c.OutputDir() {
		return errors.New("-cache-dir and -out must differ")
	}
	if c.OnlyStage != "" && c.FromStage != "" {
		return errors.New("use only one of -only-stage or -from-stage")
	}
	for _, s := range []string{c.OnlyStage, c.FromStage} {
		if s != "" && !slices.Contains(allStages, s) {
			return fmt.Errorf("unknown stage %q (want one of %v)", s, allStages)
		}
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		SeedsPath: filepath.FromSlash("work_list/urls.txt"),
		BaseDir:   ".",
		NumChunks: 100,
		Workers:   2,
	}
}
