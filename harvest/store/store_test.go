package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theimaginaryfoundation/novel-harvest/harvest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "harvest.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func sampleWork(id string) harvest.FinalWorkRecord {
	chapter := "第一章"
	parent := "c1"
	return harvest.FinalWorkRecord{
		ID: id,
		Metadata: harvest.WorkMetadata{
			Title:       "作品" + id,
			AuthorID:    "author",
			AuthorName:  "作者",
			Tags:        []string{"SF"},
			SelfRatings: []harvest.Rating{harvest.RatingViolence},
		},
		Chapters: []harvest.Chapter{{Title: &chapter, Episodes: []harvest.Episode{
			{ID: "e1", Index: 1, Title: "1", Body: "本文1"},
			{ID: "e2", Index: 2, Title: "2", Body: "本文2"},
		}}},
		Comments: []harvest.Comment{
			{ID: "c1", EpisodeID: "e1", UserID: "reader", Body: "good"},
			{ID: "c1-reply", EpisodeID: "e1", UserID: "author", IsAuthor: true, Body: "thanks", ReplyTo: &parent},
		},
		Reviews: []harvest.ReviewLink{{URL: "/works/" + id + "/reviews/1"}},
		Access:  harvest.Access{TotalPV: 30, Episodes: []harvest.EpisodeAccess{{ID: "e1", PV: 30, Likes: 2}}},
	}
}

func count(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

func TestSaveWorks_UpsertReplacesChildren(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SaveWorks(ctx, 0, []harvest.FinalWorkRecord{sampleWork("w1"), sampleWork("w2")}); err != nil {
		t.Fatalf("SaveWorks: %v", err)
	}
	if n, err := s.CountWorks(ctx); err != nil || n != 2 {
		t.Fatalf("CountWorks=%d,%v, want 2", n, err)
	}
	if got := count(t, s, `SELECT COUNT(*) FROM comments WHERE work_id = ?`, "w1"); got != 2 {
		t.Fatalf("comments=%d, want 2", got)
	}

	var pv, likes sql.NullInt64
	if err := s.db.QueryRow(`SELECT pv, likes FROM episodes WHERE work_id = ? AND id = ?`, "w1", "e1").Scan(&pv, &likes); err != nil {
		t.Fatalf("select episode: %v", err)
	}
	if pv.Int64 != 30 || likes.Int64 != 2 {
		t.Fatalf("pv=%v likes=%v, want 30/2", pv, likes)
	}
	if err := s.db.QueryRow(`SELECT pv FROM episodes WHERE work_id = ? AND id = ?`, "w1", "e2").Scan(&pv); err != nil {
		t.Fatalf("select episode: %v", err)
	}
	if pv.Valid {
		t.Fatalf("pv=%v, want NULL for an episode without statistics", pv)
	}

	updated := sampleWork("w1")
	updated.Metadata.Title = "改題"
	updated.Comments = updated.Comments[:1]
	if err := s.SaveWorks(ctx, 3, []harvest.FinalWorkRecord{updated}); err != nil {
		t.Fatalf("SaveWorks update: %v", err)
	}
	if n, _ := s.CountWorks(ctx); n != 2 {
		t.Fatalf("CountWorks=%d after upsert, want 2", n)
	}
	if got := count(t, s, `SELECT COUNT(*) FROM comments WHERE work_id = ?`, "w1"); got != 1 {
		t.Fatalf("comments=%d after upsert, want 1", got)
	}
	if got := count(t, s, `SELECT chunk FROM works WHERE id = ?`, "w1"); got != 3 {
		t.Fatalf("chunk=%d, want 3", got)
	}
}

func TestExportDir(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	if _, err := harvest.WriteChunk(dir, harvest.DatasetPrefix, 0, []harvest.FinalWorkRecord{sampleWork("a")}, 0); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if _, err := harvest.WriteChunk(dir, harvest.DatasetPrefix, 1, []harvest.FinalWorkRecord{sampleWork("b"), sampleWork("c")}, 0); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	s := openTestStore(t)
	res, err := s.ExportDir(ctx, dir)
	if err != nil {
		t.Fatalf("ExportDir: %v", err)
	}
	if res.Files != 2 || res.Works != 3 {
		t.Fatalf("res=%+v", res)
	}

	// Exporting again is idempotent.
	if _, err := s.ExportDir(ctx, dir); err != nil {
		t.Fatalf("second ExportDir: %v", err)
	}
	if n, _ := s.CountWorks(ctx); n != 3 {
		t.Fatalf("CountWorks=%d, want 3", n)
	}
	if got := count(t, s, `SELECT COUNT(*) FROM reviews`); got != 3 {
		t.Fatalf("reviews=%d, want 3", got)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Open("", nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestDSN_EscapesQueryCharacters(t *testing.T) {
	t.Parallel()

	got := dsn("/data/odd?name#1.db")
	if !strings.HasPrefix(got, "file:/data/odd%3Fname%231.db?") {
		t.Fatalf("dsn=%q, want escaped path", got)
	}
	if !strings.Contains(got, "_foreign_keys=on") || !strings.Contains(got, "_journal_mode=WAL") {
		t.Fatalf("dsn=%q, missing params", got)
	}
}

func TestOpen_PathWithQueryCharacters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "odd?dir#1", "harvest.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database not created at %s: %v", path, err)
	}
}
