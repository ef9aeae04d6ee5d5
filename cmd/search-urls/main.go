// Command search-urls prints the search result pages of the star-range ladder, one URL per line.
// Collecting work URLs from those pages into a seed list happens outside this repo.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

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

	w := bufio.NewWriter(os.Stdout)
	for _, u := range searchURLs(cfg) {
		fmt.Fprintln(w, u)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func searchURLs(cfg Config) []string {
	conds := harvest.DefaultSearchConditions()
	for i := range conds {
		conds[i].Order = harvest.SearchOrder(cfg.Order)
	}
	return harvest.URLs{Base: cfg.BaseURL}.SearchURLs(conds, cfg.Pages)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Site base URL")
	fs.StringVar(&cfg.Order, "order", cfg.Order, "Search order: popular|weekly_ranking|published_at|last_episode_published_at")
	fs.IntVar(&cfg.Pages, "pages", cfg.Pages, fmt.Sprintf("Result pages per star range (max %d)", harvest.SearchMaxPage))
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML settings file (defaults to $"+settings.EnvConfig+")")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/search-urls -pages 5 > search_pages.txt")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := settings.ApplyFile(fs, cfg.ConfigPath); err != nil {
		return Config{}, err
	}
	cfg.Order = strings.ToLower(strings.TrimSpace(cfg.Order))
	return cfg, nil
}
