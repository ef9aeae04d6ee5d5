// Package store exports final work records into a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/theimaginaryfoundation/novel-harvest/harvest"
	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS works (
	id                          TEXT PRIMARY KEY,
	chunk                       INTEGER NOT NULL,
	title                       TEXT NOT NULL,
	author_id                   TEXT NOT NULL,
	author_name                 TEXT NOT NULL,
	stars                       INTEGER NOT NULL,
	catchphrase                 TEXT,
	introduction                TEXT,
	type                        TEXT NOT NULL,
	genre                       TEXT NOT NULL,
	tags                        TEXT NOT NULL,
	self_ratings                TEXT NOT NULL,
	derivative_original_work_id TEXT,
	total_characters            INTEGER NOT NULL,
	is_ended                    INTEGER NOT NULL,
	published_at                TEXT NOT NULL,
	updated_at                  TEXT NOT NULL,
	number_of_episodes          INTEGER NOT NULL,
	number_of_reviews           INTEGER NOT NULL,
	number_of_comments          INTEGER,
	number_of_followers         INTEGER NOT NULL,
	total_pv                    INTEGER NOT NULL,
	media_book                  INTEGER NOT NULL,
	media_manga                 INTEGER NOT NULL,
	media_anime                 INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS episodes (
	work_id       TEXT NOT NULL REFERENCES works(id) ON DELETE CASCADE,
	id            TEXT NOT NULL,
	chapter_index INTEGER NOT NULL,
	chapter_title TEXT,
	episode_index INTEGER NOT NULL,
	title         TEXT NOT NULL,
	published_at  TEXT NOT NULL,
	body          TEXT NOT NULL,
	pv            INTEGER,
	likes         INTEGER,
	PRIMARY KEY (work_id, id)
);

CREATE TABLE IF NOT EXISTS comments (
	work_id      TEXT NOT NULL REFERENCES works(id) ON DELETE CASCADE,
	id           TEXT NOT NULL,
	position     INTEGER NOT NULL,
	episode_id   TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	is_author    INTEGER NOT NULL,
	body         TEXT NOT NULL,
	published_at TEXT NOT NULL,
	reply_to     TEXT,
	PRIMARY KEY (work_id, id)
);

CREATE TABLE IF NOT EXISTS reviews (
	work_id    TEXT NOT NULL REFERENCES works(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	url        TEXT NOT NULL,
	is_spoiler INTEGER NOT NULL,
	PRIMARY KEY (work_id, position)
);

CREATE INDEX IF NOT EXISTS idx_works_author ON works(author_id);
CREATE INDEX IF NOT EXISTS idx_comments_episode ON comments(work_id, episode_id);
`

// Store is a SQLite database holding exported works.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at path with foreign keys on and WAL journaling.
func Open(path string, log *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("store.Open: path is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store.Open: ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("store.Open: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store.Open: ping sqlite: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// dsn builds a SQLite URI filename. SQLite percent-decodes the path, so '?' and '#' survive.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	u := url.URL{Path: filepath.ToSlash(path)}
	return "file:" + u.EscapedPath() + "?" + q.Encode()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store.Migrate: %w", err)
	}
	return nil
}

// SaveWorks upserts works from one dataset chunk in a single transaction. A work's episodes,
// comments and reviews are replaced rather than merged.
func (s *Store) SaveWorks(ctx context.Context, chunk int, works []harvest.FinalWorkRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.SaveWorks: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, w := range works {
		if err = saveWork(ctx, tx, chunk, w); err != nil {
			return fmt.Errorf("store.SaveWorks: work %s: %w", w.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store.SaveWorks: commit: %w", err)
	}
	s.log.Debug("chunk exported", zap.Int("chunk", chunk), zap.Int("works", len(works)))
	return nil
}

func saveWork(ctx context.Context, tx *sql.Tx, chunk int, w harvest.FinalWorkRecord) error {
	tags, err := json.Marshal(nonNil(w.Metadata.Tags))
	if err != nil {
		return err
	}
	ratings, err := json.Marshal(nonNil(w.Metadata.SelfRatings))
	if err != nil {
		return err
	}
	m := w.Metadata
	_, err = tx.ExecContext(ctx, `
INSERT INTO works (
	id, chunk, title, author_id, author_name, stars, catchphrase, introduction, type, genre, tags,
	self_ratings, derivative_original_work_id, total_characters, is_ended, published_at, updated_at,
	number_of_episodes, number_of_reviews, number_of_comments, number_of_followers, total_pv,
	media_book, media_manga, media_anime
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	chunk = excluded.chunk, title = excluded.title, author_id = excluded.author_id,
	author_name = excluded.author_name, stars = excluded.stars, catchphrase = excluded.catchphrase,
	introduction = excluded.introduction, type = excluded.type, genre = excluded.genre,
	tags = excluded.tags, self_ratings = excluded.self_ratings,
	derivative_original_work_id = excluded.derivative_original_work_id,
	total_characters = excluded.total_characters, is_ended = excluded.is_ended,
	published_at = excluded.published_at, updated_at = excluded.updated_at,
	number_of_episodes = excluded.number_of_episodes, number_of_reviews = excluded.number_of_reviews,
	number_of_comments = excluded.number_of_comments, number_of_followers = excluded.number_of_followers,
	total_pv = excluded.total_pv, media_book = excluded.media_book,
	media_manga = excluded.media_manga, media_anime = excluded.media_anime`,
		w.ID, chunk, m.Title, m.AuthorID, m.AuthorName, m.Stars, m.Catchphrase, m.Introduction, m.Type, m.Genre, string(tags),
		string(ratings), m.DerivativeOriginalWorkID, m.TotalCharacters, m.IsEnded, m.PublishedAt, m.UpdatedAt,
		w.NumberOfEpisodes, w.NumberOfReviews, w.NumberOfComments, w.NumberOfFollowers, w.Access.TotalPV,
		w.MediaMix.Book, w.MediaMix.Manga, w.MediaMix.Anime,
	)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	for _, table := range []string{"episodes", "comments", "reviews"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE work_id = ?", w.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for ci, ch := range w.Chapters {
		for _, ep := range ch.Episodes {
			var pv, likes *int
			if a, ok := w.Access.Lookup(ep.ID); ok {
				pv, likes = &a.PV, &a.Likes
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO episodes (work_id, id, chapter_index, chapter_title, episode_index, title, published_at, body, pv, likes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				w.ID, ep.ID, ci, ch.Title, ep.Index, ep.Title, ep.PublishedAt, ep.Body, pv, likes,
			); err != nil {
				return fmt.Errorf("episode %s: %w", ep.ID, err)
			}
		}
	}
	for i, c := range w.Comments {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO comments (work_id, id, position, episode_id, user_id, is_author, body, published_at, reply_to)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ID, c.ID, i, c.EpisodeID, c.UserID, c.IsAuthor, c.Body, c.PublishedAt, c.ReplyTo,
		); err != nil {
			return fmt.Errorf("comment %s: %w", c.ID, err)
		}
	}
	for i, r := range w.Reviews {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reviews (work_id, position, url, is_spoiler) VALUES (?, ?, ?, ?)`,
			w.ID, i, r.URL, r.IsSpoiler,
		); err != nil {
			return fmt.Errorf("review %d: %w", i, err)
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ExportResult summarizes an export run.
type ExportResult struct {
	Files int
	Works int
}

// ExportDir loads every novel_work_<i>.json in dir, in chunk order, into s.
func (s *Store) ExportDir(ctx context.Context, dir string) (ExportResult, error) {
	files, err := harvest.ListChunkFiles(dir, harvest.DatasetPrefix)
	if err != nil {
		return ExportResult{}, fmt.Errorf("store.ExportDir: %w", err)
	}
	var res ExportResult
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("store.ExportDir: %w", err)
		}
		works, err := harvest.ReadChunk[harvest.FinalWorkRecord](f.Path)
		if err != nil {
			return res, fmt.Errorf("store.ExportDir: %w", err)
		}
		if err := s.SaveWorks(ctx, f.Index, works); err != nil {
			return res, fmt.Errorf("store.ExportDir: chunk %d: %w", f.Index, err)
		}
		res.Files++
		res.Works += len(works)
		s.log.Info("progress export", zap.Int("chunk", f.Index), zap.Int("works", res.Works))
	}
	return res, nil
}

// CountWorks returns the number of exported works.
func (s *Store) CountWorks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM works`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store.CountWorks: %w", err)
	}
	return n, nil
}
