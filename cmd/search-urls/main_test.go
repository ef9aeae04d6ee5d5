package main

import (
	"flag"
	"strings"
	"testing"
)

func TestParseFlags_Defaults(t *testing.T) {
	t.Setenv("HARVEST_CONFIG", "")

	fs := flag.NewFlagSet("search-urls", flag.ContinueOnError)
	cfg, err := parseFlags(fs, nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	urls := searchURLs(cfg)
	if len(urls) != 20 {
		t.Fatalf("urls=%d, want one per ladder step", len(urls))
	}
	if !strings.HasPrefix(urls[0], "https://kakuyomu.jp/search?order=popular&") {
		t.Fatalf("first=%q", urls[0])
	}
}

func TestParseFlags_OrderAndPages(t *testing.T) {
	t.Setenv("HARVEST_CONFIG", "")

	fs := flag.NewFlagSet("search-urls", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-order", " Published_At ", "-pages", "2", "-base-url", "http://site.test"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	urls := searchURLs(cfg)
	if len(urls) != 40 || !strings.Contains(urls[1], "order=published_at") || !strings.HasSuffix(urls[1], "&page=2") {
		t.Fatalf("urls[1]=%q len=%d", urls[1], len(urls))
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Order = "random"
	if cfg.Validate() == nil {
		t.Fatalf("expected error for unknown order")
	}
	cfg = defaultConfig()
	cfg.Pages = 501
	if cfg.Validate() == nil {
		t.Fatalf("expected error for pages above the site limit")
	}
}
