// Package schema emits JSON Schemas for the on-disk record formats.
package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/theimaginaryfoundation/novel-harvest/harvest"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/fileutils"
)

// Document is one schema file.
type Document struct {
	FileName string
	Title    string
	Schema   *jsonschema.Schema
}

func reflect[T any](fileName, title string) Document {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	s := r.Reflect(v)
	s.Title = title
	return Document{FileName: fileName, Title: title, Schema: s}
}

// Generate returns the schema of one array element of each file type: cache chunks, dataset
// chunks and index.jsonl rows.
func Generate() []Document {
	return []Document{
		reflect[harvest.ShallowWorkRecord]("shallow_work.schema.json", "Shallow work record (cache_<i>.json element)"),
		reflect[harvest.FinalWorkRecord]("final_work.schema.json", "Final work record (novel_work_<i>.json element)"),
		reflect[harvest.IndexRecord]("index_record.schema.json", "Dataset index row (index.jsonl line)"),
	}
}

// Write writes every generated schema into dir, replacing older copies.
func Write(dir string, dirMode, fileMode fs.FileMode) ([]string, error) {
	if dir == "" {
		return nil, errors.New("schema.Write: dir is empty")
	}
	if dirMode == 0 {
		dirMode = 0o755
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("schema.Write: mkdir: %w", err)
	}
	var paths []string
	for _, doc := range Generate() {
		path := filepath.Join(dir, doc.FileName)
		if err := fileutils.WriteJSONFileAtomic(path, doc.Schema, fileMode); err != nil {
			return paths, fmt.Errorf("schema.Write: %s: %w", doc.FileName, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
