package main

import (
	"errors"

	"github.com/theimaginaryfoundation/novel-harvest/harvest/settings"
)

type Config struct {
	CacheDir  string
	OutputDir string

	Workers          int
	MaxChunks        int
	MaxWorksPerChunk int

	Reindex   bool
	IndexPath string

	Fetch settings.Fetch

	ConfigPath string
	Debug      bool
	Verbose    bool
}

func (c Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New("missing -cache-dir")
	}
	if c.OutputDir == "" {
		return errors.New("missing -out")
	}
	if c.CacheDir == c.OutputDir {
		return errors.New("-cache-dir and -out must differ")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if c.MaxChunks < 0 || c.MaxWorksPerChunk < 0 {
		return errors.New("max-chunks/max-works must be >= 0")
	}
	return c.Fetch.Validate()
}

func defaultConfig() Config {
	return Config{
		CacheDir:  "cache_novel_work",
		OutputDir: "novel_work",
		Workers:   2,
		Reindex:   true,
		Fetch:     settings.DefaultFetch(),
	}
}
