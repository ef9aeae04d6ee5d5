package harvest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BuildIndexRecord creates a stable index row for one final work.
func BuildIndexRecord(w FinalWorkRecord, chunk int, datasetPath string) IndexRecord {
	episodes := 0
	for _, ch := range w.Chapters {
		episodes += len(ch.Episodes)
	}
	return IndexRecord{
		WorkID:      w.ID,
		Title:       strings.TrimSpace(w.Metadata.Title),
		AuthorID:    w.Metadata.AuthorID,
		Chunk:       chunk,
		DatasetPath: datasetPath,
		Chapters:    len(w.Chapters),
		Episodes:    episodes,
		Comments:    len(w.Comments),
		Tags:        dedupeStrings(w.Metadata.Tags),
	}
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// RebuildIndex rewrites indexPath as JSONL from every dataset chunk in outputDir, in chunk order.
// Dataset paths are stored relative to outputDir.
func RebuildIndex(outputDir, indexPath string) (int, error) {
	files, err := ListChunkFiles(outputDir, DatasetPrefix)
	if err != nil {
		return 0, fmt.Errorf("RebuildIndex: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return 0, fmt.Errorf("RebuildIndex: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(indexPath), ".tmp_index_*.jsonl")
	if err != nil {
		return 0, fmt.Errorf("RebuildIndex: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("RebuildIndex: %w", err)
	}

	w := bufio.NewWriterSize(tmp, 1<<20)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	rows := 0
	for _, f := range files {
		works, err := ReadChunk[FinalWorkRecord](f.Path)
		if err != nil {
			_ = tmp.Close()
			return 0, fmt.Errorf("RebuildIndex: %w", err)
		}
		rel, err := filepath.Rel(outputDir, f.Path)
		if err != nil {
			rel = f.Path
		}
		for _, work := range works {
			if err := enc.Encode(BuildIndexRecord(work, f.Index, filepath.ToSlash(rel))); err != nil {
				_ = tmp.Close()
				return 0, fmt.Errorf("RebuildIndex: encode: %w", err)
			}
			rows++
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("RebuildIndex: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("RebuildIndex: close: %w", err)
	}
	if err := os.Rename(tmpName, indexPath); err != nil {
		return 0, fmt.Errorf("RebuildIndex: rename: %w", err)
	}
	return rows, nil
}
