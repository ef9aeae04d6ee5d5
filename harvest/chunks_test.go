package harvest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitEven_CoversEveryItemOnce(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 23; n++ {
		for c := 1; c <= 7; c++ {
			items := make([]int, n)
			for i := range items {
				items[i] = i
			}
			parts := SplitEven(items, c)
			if len(parts) != c {
				t.Fatalf("n=%d c=%d: len(parts)=%d, want %d", n, c, len(parts), c)
			}
			next := 0
			minSize, maxSize := n, 0
			for _, p := range parts {
				for _, v := range p {
					if v != next {
						t.Fatalf("n=%d c=%d: got %d, want %d (order or duplication broken)", n, c, v, next)
					}
					next++
				}
				minSize = min(minSize, len(p))
				maxSize = max(maxSize, len(p))
			}
			if next != n {
				t.Fatalf("n=%d c=%d: covered %d items", n, c, next)
			}
			if maxSize-minSize > 1 {
				t.Fatalf("n=%d c=%d: sizes range %d..%d", n, c, minSize, maxSize)
			}
		}
	}
}

func TestSplitEven_ArraySplitSizes(t *testing.T) {
	t.Parallel()

	parts := SplitEven([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, 3)
	got := []int{len(parts[0]), len(parts[1]), len(parts[2])}
	if got[0] != 4 || got[1] != 3 || got[2] != 3 {
		t.Fatalf("sizes=%v, want [4 3 3]", got)
	}
	// Appending to one part must not clobber the next.
	parts[0] = append(parts[0], "x")
	if parts[1][0] != "e" {
		t.Fatalf("parts[1][0]=%q, want e", parts[1][0])
	}
}

func TestParseChunkIndex(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		idx  int
		ok   bool
	}{
		{"cache_0.json", 0, true},
		{"cache_42.json", 42, true},
		{"cache_.json", 0, false},
		{"cache_01.json", 0, false},
		{"cache_-1.json", 0, false},
		{"cache_3.json.bak", 0, false},
		{".tmp_chunk_123.json", 0, false},
		{"novel_work_3.json", 0, false},
	}
	for _, tc := range cases {
		idx, ok := ParseChunkIndex(CachePrefix, tc.name)
		if idx != tc.idx || ok != tc.ok {
			t.Fatalf("ParseChunkIndex(%q)=%d,%v, want %d,%v", tc.name, idx, ok, tc.idx, tc.ok)
		}
	}
}

func TestNextChunkIndex_ResumesAfterHighest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if got, err := NextChunkIndex(filepath.Join(dir, "missing"), CachePrefix); err != nil || got != 0 {
		t.Fatalf("missing dir: got=%d err=%v, want 0", got, err)
	}
	if got, err := NextChunkIndex(dir, CachePrefix); err != nil || got != 0 {
		t.Fatalf("empty dir: got=%d err=%v, want 0", got, err)
	}

	for _, name := range []string{"cache_0.json", "cache_1.json", "cache_2.json", ".tmp_chunk_9.json", "cache_notes.txt", "novel_work_7.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	got, err := NextChunkIndex(dir, CachePrefix)
	if err != nil {
		t.Fatalf("NextChunkIndex: %v", err)
	}
	if got != 3 {
		t.Fatalf("NextChunkIndex=%d, want 3", got)
	}

	files, err := ListChunkFiles(dir, CachePrefix)
	if err != nil {
		t.Fatalf("ListChunkFiles: %v", err)
	}
	if len(files) != 3 || files[2].Index != 2 {
		t.Fatalf("files=%+v", files)
	}
}

func TestListChunkFiles_NumericOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"cache_10.json", "cache_2.json", "cache_1.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, err := ListChunkFiles(dir, CachePrefix)
	if err != nil {
		t.Fatalf("ListChunkFiles: %v", err)
	}
	if files[0].Index != 1 || files[1].Index != 2 || files[2].Index != 10 {
		t.Fatalf("order=%d,%d,%d, want 1,2,10", files[0].Index, files[1].Index, files[2].Index)
	}
}

func TestWriteChunk_NeverOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := WriteChunk[ShallowWorkRecord](dir, CachePrefix, 0, nil, 0)
	if err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(b)) != "[]" {
		t.Fatalf("empty chunk=%q, want []", string(b))
	}

	if _, err := WriteChunk(dir, CachePrefix, 0, []ShallowWorkRecord{{ID: "x"}}, 0); err == nil {
		t.Fatalf("expected error when chunk exists")
	}
	records, err := ReadChunk[ShallowWorkRecord](path)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("chunk was overwritten: %+v", records)
	}
}
