package main

import (
	"errors"
	"path/filepath"

	"github.com/theimaginaryfoundation/novel-harvest/harvest/settings"
)

type Config struct {
	SeedsPath string
	CacheDir  string

	NumChunks int
	Workers   int
	MaxChunks int
	MaxPages  int

	Fetch settings.Fetch

	ConfigPath string
	Debug      bool
	Verbose    bool
}

func (c Config) Validate() error {
	if c.SeedsPath == "" {
		return errors.New("missing -seeds")
	}
	if c.CacheDir == "" {
		return errors.New("missing -cache-dir")
	}
	if c.NumChunks <= 0 {
		return errors.New("chunks must be > 0")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if c.MaxChunks < 0 || c.MaxPages < 0 {
		return errors.New("max-chunks/max-pages must be >= 0")
	}
	return c.Fetch.Validate()
}

func defaultConfig() Config {
	return Config{
		SeedsPath: filepath.FromSlash("work_list/urls.txt"),
		CacheDir:  "cache_novel_work",
		NumChunks: 100,
		Workers:   2,
		Fetch:     settings.DefaultFetch(),
	}
}
