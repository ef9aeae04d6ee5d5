package harvest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/theimaginaryfoundation/novel-harvest/harvest/fileutils"
)

const (
	CachePrefix   = "cache"
	DatasetPrefix = "novel_work"
)

// ChunkFile is an on-disk chunk named <prefix>_<index>.json.
type ChunkFile struct {
	Index int
	Path  string
}

// SplitEven partitions items into exactly n contiguous parts whose sizes differ by at most one;
// the first len(items)%n parts get the extra item. Parts beyond len(items) are empty.
// Example: 10 items, n=3 gives sizes [4 3 3].
func SplitEven[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	size, extra := len(items)/n, len(items)%n
	parts := make([][]T, n)
	start := 0
	for i := range parts {
		end := start + size
		if i < extra {
			end++
		}
		parts[i] = items[start:end:end]
		start = end
	}
	return parts
}

func ChunkFileName(prefix string, index int) string {
	return fmt.Sprintf("%s_%d.json", prefix, index)
}

// ParseChunkIndex returns the index encoded in a chunk file name, or false when name is not a
// chunk file for prefix.
func ParseChunkIndex(prefix, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// ListChunkFiles returns the chunk files for prefix in dir, sorted by index. A missing dir is empty.
func ListChunkFiles(dir, prefix string) ([]ChunkFile, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ListChunkFiles: read dir: %w", err)
	}
	var out []ChunkFile
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		idx, ok := ParseChunkIndex(prefix, e.Name())
		if !ok {
			continue
		}
		out = append(out, ChunkFile{Index: idx, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// NextChunkIndex is the resume point: one past the highest completed chunk, or 0.
func NextChunkIndex(dir, prefix string) (int, error) {
	files, err := ListChunkFiles(dir, prefix)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}
	return files[len(files)-1].Index + 1, nil
}

// WriteChunk atomically writes records as chunk index of dir. Existing chunks are never replaced.
func WriteChunk[T any](dir, prefix string, index int, records []T, mode fs.FileMode) (string, error) {
	path := filepath.Join(dir, ChunkFileName(prefix, index))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("WriteChunk: output file already exists: %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("WriteChunk: stat output file: %w", err)
	}
	if records == nil {
		records = []T{}
	}
	if err := fileutils.WriteJSONFileAtomic(path, records, mode); err != nil {
		return "", fmt.Errorf("WriteChunk: %w", err)
	}
	return path, nil
}

func ReadChunk[T any](path string) ([]T, error) {
	records, err := fileutils.ReadJSONFile[[]T](path)
	if err != nil {
		return nil, fmt.Errorf("ReadChunk: %w", err)
	}
	return records, nil
}
