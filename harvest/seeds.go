package harvest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseWorkID returns the last path segment of a work URL, ignoring any query, fragment or
// trailing slash.
func ParseWorkID(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// ReadSeeds parses a newline-delimited list of work URLs into work ids, in file order.
// Blank lines and lines starting with '#' are skipped; repeated ids keep their first position.
func ReadSeeds(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, errors.New("ReadSeeds: reader is nil")
	}

	var ids []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		id := ParseWorkID(s)
		if id == "" {
			return nil, fmt.Errorf("ReadSeeds: line %d: no work id in %q", line, s)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ReadSeeds: scan: %w", err)
	}
	return ids, nil
}

func LoadSeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadSeeds: %w", err)
	}
	defer f.Close()
	return ReadSeeds(f)
}
