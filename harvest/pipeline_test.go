package harvest_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theimaginaryfoundation/novel-harvest/harvest"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/extract"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/fetch"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/sitetest"
)

func newWork(id string) *sitetest.Work {
	return &sitetest.Work{
		ID:            id,
		Title:         "作品" + id,
		AuthorID:      "author_" + id,
		AuthorName:    "作者" + id,
		Stars:         10,
		Status:        "連載中",
		Type:          "オリジナル小説",
		Genre:         "現代ドラマ",
		Characters:    1000,
		PublishedAt:   "2024-01-01T00:00:00Z",
		UpdatedAt:     "2024-02-01T00:00:00Z",
		CommentsValue: "0件",
		TotalPV:       5,
		Chapters: []sitetest.Chapter{{Episodes: []sitetest.Episode{
			{ID: id + "-e1", Title: "第1話", PublishedAt: "2024-01-01T00:00:00Z", Body: "本文" + id, PV: 5},
		}}},
	}
}

func newCrawler(t *testing.T, site *sitetest.Site) *harvest.Crawler {
	t.Helper()
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	return &harvest.Crawler{
		Fetcher:    fetch.New(srv.Client(), fetch.Options{MaxAttempts: 2, RetryDelay: time.Millisecond}, nil),
		URLs:       harvest.URLs{Base: srv.URL},
		Extractors: extract.New(nil),
	}
}

func seedIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("w%02d", i+1)
	}
	return ids
}

func siteFor(ids []string) (*sitetest.Site, map[string]*sitetest.Work) {
	works := make(map[string]*sitetest.Work, len(ids))
	var list []*sitetest.Work
	for _, id := range ids {
		w := newWork(id)
		works[id] = w
		list = append(list, w)
	}
	return sitetest.New(list...), works
}

func TestBuildCache_FreshRunsAreIdentical(t *testing.T) {
	t.Parallel()

	ids := seedIDs(7)
	site, _ := siteFor(ids)
	c := newCrawler(t, site)

	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")
	for _, dir := range []string{dirA, dirB} {
		res, err := harvest.BuildCache(context.Background(), c, ids, harvest.CacheOptions{CacheDir: dir, NumChunks: 3, Workers: 2})
		if err != nil {
			t.Fatalf("BuildCache(%s): %v", dir, err)
		}
		if res.ChunksWritten != 3 || res.Works != 7 || res.StartIndex != 0 {
			t.Fatalf("res=%+v", res)
		}
	}
	for i := 0; i < 3; i++ {
		name := harvest.ChunkFileName(harvest.CachePrefix, i)
		a, err := os.ReadFile(filepath.Join(dirA, name))
		if err != nil {
			t.Fatalf("read a: %v", err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, name))
		if err != nil {
			t.Fatalf("read b: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("%s differs between runs", name)
		}
	}

	first, err := harvest.ReadChunk[harvest.ShallowWorkRecord](filepath.Join(dirA, "cache_0.json"))
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if len(first) != 3 || first[0].ID != "w01" || first[2].ID != "w03" {
		t.Fatalf("chunk 0 ids=%v, want w01..w03", recordIDs(first))
	}
}

func recordIDs(recs []harvest.ShallowWorkRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestBuildCache_ExtractionErrorLeavesNoPartialChunk(t *testing.T) {
	t.Parallel()

	ids := seedIDs(10)
	site, works := siteFor(ids)
	works["w07"].OmitTitle = true
	c := newCrawler(t, site)
	dir := t.TempDir()

	res, err := harvest.BuildCache(context.Background(), c, ids, harvest.CacheOptions{CacheDir: dir, NumChunks: 2, Workers: 2})
	var exErr *extract.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("err=%v, want ExtractionError", err)
	}
	if exErr.Field != "title" {
		t.Fatalf("Field=%q, want title", exErr.Field)
	}
	if !strings.Contains(err.Error(), "/works/w07") {
		t.Fatalf("err=%q does not name the work", err)
	}
	if res.ChunksWritten != 1 {
		t.Fatalf("ChunksWritten=%d, want 1", res.ChunksWritten)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache_1.json")); !os.IsNotExist(err) {
		t.Fatalf("cache_1.json exists after failed chunk (stat err=%v)", err)
	}
	before, err := os.ReadFile(filepath.Join(dir, "cache_0.json"))
	if err != nil {
		t.Fatalf("read cache_0: %v", err)
	}

	// Once the page is fixed, a rerun resumes at the failed chunk.
	works["w07"].OmitTitle = false
	res, err = harvest.BuildCache(context.Background(), c, ids, harvest.CacheOptions{CacheDir: dir, NumChunks: 2, Workers: 2})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.StartIndex != 1 || res.ChunksWritten != 1 || res.Works != 5 {
		t.Fatalf("resume res=%+v", res)
	}
	after, err := os.ReadFile(filepath.Join(dir, "cache_0.json"))
	if err != nil {
		t.Fatalf("read cache_0: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("cache_0.json rewritten on resume")
	}
	if got := site.Hits("/works/w01"); got != 1 {
		t.Fatalf("w01 fetched %d times, want 1", got)
	}
}

func TestBuildCache_MaxChunksAndSkippedWorks(t *testing.T) {
	t.Parallel()

	ids := seedIDs(4)
	site, _ := siteFor(ids[:3])
	c := newCrawler(t, site)
	dir := t.TempDir()

	res, err := harvest.BuildCache(context.Background(), c, ids, harvest.CacheOptions{CacheDir: dir, NumChunks: 2, Workers: 2, MaxChunks: 1})
	if err != nil {
		t.Fatalf("BuildCache: %v", err)
	}
	if res.ChunksWritten != 1 || res.Works != 2 {
		t.Fatalf("first res=%+v", res)
	}

	res, err = harvest.BuildCache(context.Background(), c, ids, harvest.CacheOptions{CacheDir: dir, NumChunks: 2, Workers: 2})
	if err != nil {
		t.Fatalf("BuildCache: %v", err)
	}
	if res.StartIndex != 1 || res.Works != 1 || res.Skipped != 1 {
		t.Fatalf("second res=%+v, want w04 skipped as not found", res)
	}
	if got := site.Hits("/works/w04/accesses"); got != 0 {
		t.Fatalf("accesses fetched %d times for a missing work", got)
	}
}

func TestHydrate_EndToEnd(t *testing.T) {
	t.Parallel()

	w := newWork("w1")
	w.CommentsValue = "作者の設定により非表示"
	w.Catchphrase = "コミカライズ決定！"
	w.SelfRatings = []string{"残酷描写有り", "謎描写有り"}
	w.Chapters = []sitetest.Chapter{
		{Title: "第一章", Episodes: []sitetest.Episode{
			{ID: "a", Title: "A", PublishedAt: "2024-01-01T00:00:00Z", Body: "本文A", PV: 3},
			{ID: "b", Title: "B", PublishedAt: "2024-01-02T00:00:00Z", Body: "本文B", Gone: true},
			{ID: "c", Title: "C", PublishedAt: "2024-01-03T00:00:00Z", Body: "本文C", PV: 1},
		}},
	}
	w.CommentPages = [][]sitetest.Comment{{
		{ID: "100", UserID: "reader", EpisodeID: "a", Body: "面白い", PublishedAt: "2024-01-05T00:00:00Z",
			Reply: &sitetest.Reply{AuthorID: w.AuthorID, Date: "2024年1月6日", Body: "ありがとう"}},
	}}
	w.ReviewPages = [][]sitetest.Review{{{Href: "/works/w1/reviews/1", Spoiler: true}}}

	site := sitetest.New(w)
	c := newCrawler(t, site)
	cacheDir := t.TempDir()
	outDir := t.TempDir()

	if _, err := harvest.BuildCache(context.Background(), c, []string{"w1"}, harvest.CacheOptions{CacheDir: cacheDir, NumChunks: 1}); err != nil {
		t.Fatalf("BuildCache: %v", err)
	}
	res, err := harvest.Hydrate(context.Background(), c, harvest.HydrateOptions{CacheDir: cacheDir, OutputDir: outDir})
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if res.ChunksWritten != 1 || res.Works != 1 {
		t.Fatalf("res=%+v", res)
	}

	final, err := harvest.ReadChunk[harvest.FinalWorkRecord](filepath.Join(outDir, "novel_work_0.json"))
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	got := final[0]

	eps := got.Chapters[0].Episodes
	if len(eps) != 2 || eps[0].ID != "a" || eps[0].Index != 1 || eps[1].ID != "c" || eps[1].Index != 2 {
		t.Fatalf("episodes=%+v, want a#1 c#2", eps)
	}
	if !strings.Contains(eps[1].Body, "本文C") {
		t.Fatalf("body=%q", eps[1].Body)
	}
	if got.NumberOfComments != nil {
		t.Fatalf("NumberOfComments=%v, want nil for hidden count", *got.NumberOfComments)
	}
	if len(got.Comments) != 2 || got.Comments[0].IsAuthor || !got.Comments[1].IsAuthor {
		t.Fatalf("comments=%+v, want reader then author reply", got.Comments)
	}
	if got.Comments[1].ReplyTo == nil || *got.Comments[1].ReplyTo != "100" {
		t.Fatalf("reply_to=%v, want 100", got.Comments[1].ReplyTo)
	}
	if len(got.Metadata.SelfRatings) != 1 || got.Metadata.SelfRatings[0] != harvest.RatingCruel {
		t.Fatalf("SelfRatings=%v, want [cruel]", got.Metadata.SelfRatings)
	}
	if !got.MediaMix.Manga || got.MediaMix.Book {
		t.Fatalf("MediaMix=%+v, want manga", got.MediaMix)
	}
	if len(got.Reviews) != 1 || !got.Reviews[0].IsSpoiler {
		t.Fatalf("reviews=%+v", got.Reviews)
	}

	// A second run finds nothing left to do.
	res, err = harvest.Hydrate(context.Background(), c, harvest.HydrateOptions{CacheDir: cacheDir, OutputDir: outDir})
	if err != nil || res.ChunksWritten != 0 || res.StartIndex != 1 {
		t.Fatalf("rerun res=%+v err=%v", res, err)
	}
	if hits := site.Hits("/works/w1/episodes/a"); hits != 1 {
		t.Fatalf("episode a fetched %d times, want 1", hits)
	}

	n, err := harvest.RebuildIndex(outDir, filepath.Join(outDir, "index.jsonl"))
	if err != nil || n != 1 {
		t.Fatalf("RebuildIndex=%d,%v", n, err)
	}
}

func TestHydrate_DebugLimits(t *testing.T) {
	t.Parallel()

	ids := seedIDs(9)
	site, _ := siteFor(ids)
	c := newCrawler(t, site)
	cacheDir := t.TempDir()
	outDir := t.TempDir()

	if _, err := harvest.BuildCache(context.Background(), c, ids, harvest.CacheOptions{CacheDir: cacheDir, NumChunks: 3, Workers: 3}); err != nil {
		t.Fatalf("BuildCache: %v", err)
	}
	res, err := harvest.Hydrate(context.Background(), c, harvest.HydrateOptions{
		CacheDir: cacheDir, OutputDir: outDir, Workers: 2, MaxChunks: 2, MaxWorksPerChunk: 2,
	})
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if res.ChunksWritten != 2 || res.Works != 4 {
		t.Fatalf("res=%+v, want 2 chunks of 2 works", res)
	}
	if _, err := os.Stat(filepath.Join(outDir, "novel_work_2.json")); !os.IsNotExist(err) {
		t.Fatalf("novel_work_2.json written despite MaxChunks")
	}
}
