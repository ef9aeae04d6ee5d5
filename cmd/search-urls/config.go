package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/theimaginaryfoundation/novel-harvest/harvest"
)

var orders = []harvest.SearchOrder{
	harvest.OrderPopular,
	harvest.OrderWeeklyRanking,
	harvest.OrderPublishedAt,
	harvest.OrderLastEpisodeAt,
}

type Config struct {
	BaseURL    string
	Order      string
	Pages      int
	ConfigPath string
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("missing -base-url")
	}
	if !slices.Contains(orders, harvest.SearchOrder(c.Order)) {
		return fmt.Errorf("unknown -order %q (want one of %v)", c.Order, orders)
	}
	if c.Pages <= 0 || c.Pages > harvest.SearchMaxPage {
		return fmt.Errorf("pages must be in 1..%d", harvest.SearchMaxPage)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		BaseURL: harvest.DefaultBaseURL,
		Order:   string(harvest.OrderPopular),
		Pages:   1,
	}
}
