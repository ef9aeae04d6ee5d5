// Package extract maps fetched site pages to harvest records using CSS selectors.
//
// Every extractor is pure. A field the records depend on that cannot be found yields an
// *ExtractionError naming it; an information label the extractor does not know is logged as a
// warning and skipped.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/theimaginaryfoundation/novel-harvest/harvest"
	"go.uber.org/zap"
)

// ExtractionError reports a required field missing or malformed on a page.
type ExtractionError struct {
	Page   string
	Field  string
	Detail string
}

func (e *ExtractionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("extract %s: missing required field %q", e.Page, e.Field)
	}
	return fmt.Sprintf("extract %s: field %q: %s", e.Page, e.Field, e.Detail)
}

func missing(page, field string) error {
	return &ExtractionError{Page: page, Field: field}
}

func invalid(page, field, format string, args ...any) error {
	return &ExtractionError{Page: page, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// New returns the goquery extractors for every page type.
func New(log *zap.Logger) harvest.Extractors {
	if log == nil {
		log = zap.NewNop()
	}
	return harvest.Extractors{
		Work:     WorkPage{Log: log},
		Access:   AccessPage{},
		Reviews:  ReviewPage{},
		Comments: CommentPage{},
		Episode:  EpisodePage{},
	}
}

// ParseInt parses a count as displayed on the site, e.g. "12,345".
func ParseInt(text string) (int, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	return strconv.Atoi(s)
}

// ParseUserID returns the user id from a profile link such as "/users/someone".
func ParseUserID(href string) string {
	return lastSegment(href)
}

// ParseEpisodeID returns the episode id from an episode or episode-comments link.
func ParseEpisodeID(href string) string {
	return lastSegment(strings.ReplaceAll(href, "/comments", ""))
}

func lastSegment(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// attr returns the trimmed attribute of the first node in s, or false when absent.
func attr(s *goquery.Selection, name string) (string, bool) {
	if s.Length() == 0 {
		return "", false
	}
	v, ok := s.First().Attr(name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}
