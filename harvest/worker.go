package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Progress counts finished items across workers.
type Progress struct {
	label string
	total int64
	done  atomic.Int64
	log   *zap.Logger
}

func NewProgress(label string, total int, log *zap.Logger) *Progress {
	if log == nil {
		log = zap.NewNop()
	}
	return &Progress{label: label, total: int64(total), log: log}
}

// Add marks one item finished and returns the running count.
func (p *Progress) Add() int64 {
	n := p.done.Add(1)
	p.log.Info("progress "+p.label, zap.Int64("done", n), zap.Int64("total", p.total))
	return n
}

func (p *Progress) Done() int64 {
	return p.done.Load()
}

// ChunkResult is the merged output of one chunk.
type ChunkResult[Out any] struct {
	Records []Out
	Skipped int
}

// ChunkWorker fans one chunk out over Workers goroutines, each owning a contiguous sub-slice.
// Items whose Process returns fetch.ErrNotFound are skipped; any other error aborts the chunk.
type ChunkWorker[In, Out any] struct {
	Workers int
	Process func(ctx context.Context, item In) (Out, error)

	// Name identifies an item in logs and errors.
	Name func(item In) string

	Label string
	Log   *zap.Logger
}

func (w ChunkWorker[In, Out]) Run(ctx context.Context, items []In) (ChunkResult[Out], error) {
	if ctx == nil {
		return ChunkResult[Out]{}, errors.New("ChunkWorker: ctx is nil")
	}
	if w.Process == nil {
		return ChunkResult[Out]{}, errors.New("ChunkWorker: Process is nil")
	}
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	workers := w.Workers
	if workers <= 0 {
		workers = 1
	}
	name := w.Name
	if name == nil {
		name = func(In) string { return "" }
	}

	progress := NewProgress(w.Label, len(items), log)
	parts := SplitEven(items, workers)
	results := make([][]Out, len(parts))
	skipped := make([]int, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		g.Go(func() error {
			local := make([]Out, 0, len(part))
			for _, item := range part {
				out, err := w.Process(gctx, item)
				if isNotFound(err) {
					log.Warn("skip not found", zap.String("item", name(item)), zap.Error(err))
					skipped[i]++
					progress.Add()
					continue
				}
				if err != nil {
					return fmt.Errorf("%s %s: %w", w.Label, name(item), err)
				}
				local = append(local, out)
				progress.Add()
			}
			results[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ChunkResult[Out]{}, err
	}

	res := ChunkResult[Out]{Records: make([]Out, 0, len(items))}
	for i := range results {
		res.Records = append(res.Records, results[i]...)
		res.Skipped += skipped[i]
	}
	return res, nil
}
