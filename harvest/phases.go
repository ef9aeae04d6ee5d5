package harvest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// CacheOptions controls Phase 1.
type CacheOptions struct {
	// CacheDir receives cache_<i>.json files.
	CacheDir string

	// NumChunks is how many partitions the seed list is split into.
	NumChunks int

	// Workers is the per-chunk worker pool size.
	Workers int

	// MaxChunks stops after this many newly written chunks (0 = all).
	MaxChunks int

	// DirMode is used when creating output directories (defaults to 0o755).
	DirMode fs.FileMode

	// FileMode is used when creating chunk files (defaults to 0o644).
	FileMode fs.FileMode
}

type CacheResult struct {
	StartIndex    int
	ChunksWritten int
	Works         int
	Skipped       int
	Paths         []string
}

// BuildCache runs Phase 1: it partitions workIDs into chunks and writes one shallow cache file per
// chunk, resuming after the highest chunk already on disk.
func BuildCache(ctx context.Context, c *Crawler, workIDs []string, opts CacheOptions) (CacheResult, error) {
	if ctx == nil {
		return CacheResult{}, errors.New("BuildCache: ctx is nil")
	}
	if err := c.check(); err != nil {
		return CacheResult{}, fmt.Errorf("BuildCache: %w", err)
	}
	if opts.CacheDir == "" {
		return CacheResult{}, errors.New("BuildCache: opts.CacheDir is empty")
	}
	if opts.NumChunks <= 0 {
		return CacheResult{}, errors.New("BuildCache: opts.NumChunks must be > 0")
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0o755
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}
	if err := os.MkdirAll(opts.CacheDir, opts.DirMode); err != nil {
		return CacheResult{}, fmt.Errorf("BuildCache: mkdir cache dir: %w", err)
	}
	log := c.logger()

	start, err := NextChunkIndex(opts.CacheDir, CachePrefix)
	if err != nil {
		return CacheResult{}, fmt.Errorf("BuildCache: %w", err)
	}
	chunks := SplitEven(workIDs, opts.NumChunks)
	res := CacheResult{StartIndex: start}
	log.Info("cache phase",
		zap.Int("works", len(workIDs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("start_index", start),
		zap.Int("remaining", max(len(chunks)-start, 0)),
	)

	worker := ChunkWorker[string, ShallowWorkRecord]{
		Workers: opts.Workers,
		Process: c.ShallowWork,
		Name:    c.URLs.Work,
		Log:     log,
	}
	for i := start; i < len(chunks); i++ {
		if opts.MaxChunks > 0 && res.ChunksWritten >= opts.MaxChunks {
			break
		}
		worker.Label = fmt.Sprintf("cache chunk %d", i)
		out, err := worker.Run(ctx, chunks[i])
		if err != nil {
			return res, fmt.Errorf("BuildCache: chunk %d: %w", i, err)
		}
		path, err := WriteChunk(opts.CacheDir, CachePrefix, i, out.Records, opts.FileMode)
		if err != nil {
			return res, fmt.Errorf("BuildCache: chunk %d: %w", i, err)
		}
		res.ChunksWritten++
		res.Works += len(out.Records)
		res.Skipped += out.Skipped
		res.Paths = append(res.Paths, path)
		log.Info("chunk written", zap.Int("chunk", i), zap.String("path", path), zap.Int("works", len(out.Records)), zap.Int("skipped", out.Skipped))
	}
	return res, nil
}

// HydrateOptions controls Phase 2.
type HydrateOptions struct {
	// CacheDir holds the Phase 1 cache_<i>.json files.
	CacheDir string

	// OutputDir receives novel_work_<i>.json files, numbered like their cache file.
	OutputDir string

	Workers int

	// MaxChunks stops after this many newly written chunks (0 = all).
	MaxChunks int

	// MaxWorksPerChunk hydrates only the first N works of each cache file (0 = all).
	MaxWorksPerChunk int

	DirMode  fs.FileMode
	FileMode fs.FileMode
}

type HydrateResult struct {
	StartIndex    int
	ChunksWritten int
	Works         int
	Skipped       int
	Paths         []string
}

// Hydrate runs Phase 2: each cache file not yet mirrored in OutputDir is loaded, its works'
// episode bodies fetched, and the final records written under the same chunk index.
func Hydrate(ctx context.Context, c *Crawler, opts HydrateOptions) (HydrateResult, error) {
	if ctx == nil {
		return HydrateResult{}, errors.New("Hydrate: ctx is nil")
	}
	if err := c.check(); err != nil {
		return HydrateResult{}, fmt.Errorf("Hydrate: %w", err)
	}
	if opts.CacheDir == "" {
		return HydrateResult{}, errors.New("Hydrate: opts.CacheDir is empty")
	}
	if opts.OutputDir == "" {
		return HydrateResult{}, errors.New("Hydrate: opts.OutputDir is empty")
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0o755
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}
	if err := os.MkdirAll(opts.OutputDir, opts.DirMode); err != nil {
		return HydrateResult{}, fmt.Errorf("Hydrate: mkdir output dir: %w", err)
	}
	log := c.logger()

	caches, err := ListChunkFiles(opts.CacheDir, CachePrefix)
	if err != nil {
		return HydrateResult{}, fmt.Errorf("Hydrate: %w", err)
	}
	start, err := NextChunkIndex(opts.OutputDir, DatasetPrefix)
	if err != nil {
		return HydrateResult{}, fmt.Errorf("Hydrate: %w", err)
	}
	res := HydrateResult{StartIndex: start}
	log.Info("hydrate phase", zap.Int("cache_files", len(caches)), zap.Int("start_index", start))

	worker := ChunkWorker[ShallowWorkRecord, FinalWorkRecord]{
		Workers: opts.Workers,
		Process: c.HydrateWork,
		Name:    func(r ShallowWorkRecord) string { return c.URLs.Work(r.ID) },
		Log:     log,
	}
	for _, cf := range caches {
		if cf.Index < start {
			continue
		}
		if opts.MaxChunks > 0 && res.ChunksWritten >= opts.MaxChunks {
			break
		}
		records, err := ReadChunk[ShallowWorkRecord](cf.Path)
		if err != nil {
			return res, fmt.Errorf("Hydrate: chunk %d: %w", cf.Index, err)
		}
		if opts.MaxWorksPerChunk > 0 && len(records) > opts.MaxWorksPerChunk {
			records = records[:opts.MaxWorksPerChunk]
		}

		worker.Label = fmt.Sprintf("hydrate chunk %d", cf.Index)
		out, err := worker.Run(ctx, records)
		if err != nil {
			return res, fmt.Errorf("Hydrate: chunk %d: %w", cf.Index, err)
		}
		path, err := WriteChunk(opts.OutputDir, DatasetPrefix, cf.Index, out.Records, opts.FileMode)
		if err != nil {
			return res, fmt.Errorf("Hydrate: chunk %d: %w", cf.Index, err)
		}
		res.ChunksWritten++
		res.Works += len(out.Records)
		res.Skipped += out.Skipped
		res.Paths = append(res.Paths, path)
		log.Info("chunk written", zap.Int("chunk", cf.Index), zap.String("path", path), zap.Int("works", len(out.Records)))
	}
	return res, nil
}
