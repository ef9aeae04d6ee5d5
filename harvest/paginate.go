package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/fetch"
)

// PageFetcher is the subset of *fetch.Client the crawl depends on.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Paginate fetches pageURL(1), pageURL(2), ... and concatenates what extract returns, stopping at
// the first page that yields nothing. A not-found page ends the listing the same way. Items whose
// key was already collected are dropped, and a page that brings no new item also ends the listing.
// maxPages bounds the loop when > 0.
func Paginate[T any](ctx context.Context, f PageFetcher, pageURL func(page int) string, extract func(*goquery.Document) ([]T, error), key func(T) string, maxPages int) ([]T, error) {
	if ctx == nil {
		return nil, errors.New("Paginate: ctx is nil")
	}
	if f == nil {
		return nil, errors.New("Paginate: fetcher is nil")
	}
	if key == nil {
		return nil, errors.New("Paginate: key is nil")
	}

	out := make([]T, 0)
	seen := make(map[string]struct{})
	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		url := pageURL(page)
		doc, err := f.Fetch(ctx, url)
		if isNotFound(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Paginate: page %d: %w", page, err)
		}
		items, err := extract(doc)
		if err != nil {
			return nil, fmt.Errorf("Paginate: page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}
		added := 0
		for _, item := range items {
			k := key(item)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, item)
			added++
		}
		// Only repeats means the site ignored the page number.
		if added == 0 {
			break
		}
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, fetch.ErrNotFound)
}
