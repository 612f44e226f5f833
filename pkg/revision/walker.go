// Package revision builds the original-versus-first-revision view of a
// series and counts how many revisions the provider holds.
package revision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vjranagit/mbseries/pkg/align"
	"github.com/vjranagit/mbseries/pkg/provider"
	"github.com/vjranagit/mbseries/pkg/types"
)

// DefaultMaxRevisions bounds the revision count.
const DefaultMaxRevisions = 500

const noRevisions = "no revisions exist"

// Source opens the release history of a series.
type Source interface {
	FetchWithRevisions(ctx context.Context, id string) (provider.History, error)
}

// Walker builds revision tables.
type Walker struct {
	src          Source
	maxRevisions int
	logger       *slog.Logger
}

// NewWalker creates a walker. maxRevisions <= 0 selects DefaultMaxRevisions.
func NewWalker(src Source, maxRevisions int, logger *slog.Logger) *Walker {
	if maxRevisions <= 0 {
		maxRevisions = DefaultMaxRevisions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{src: src, maxRevisions: maxRevisions, logger: logger}
}

// Walk returns release 0 and release 1 of id on release 0's dates. A series
// without usable history yields a *types.NoRevisionsError.
func (w *Walker) Walk(ctx context.Context, id string) (*types.RevisionTable, error) {
	h, err := w.src.FetchWithRevisions(ctx, id)
	if err != nil {
		return nil, &types.SeriesError{ID: id, Err: fmt.Errorf("failed to open history: %w", err)}
	}
	if !h.HasRevisions() {
		return nil, &types.NoRevisionsError{ID: id, Reason: noRevisions}
	}

	original, err := w.release(ctx, h, id, 0)
	if err != nil {
		return nil, err
	}
	first, err := w.release(ctx, h, id, 1)
	if err != nil {
		return nil, err
	}
	if first.AllMissing() {
		return nil, &types.NoRevisionsError{ID: id, Reason: noRevisions}
	}

	rev0 := align.Unpack(original)
	rev0.ID = "Rev0"
	rev1 := align.Unpack(first)
	rev1.ID = "Rev1"

	aligned := align.Align([]types.UnpackedSeries{rev0, rev1}, rev0.Dates)

	table := &types.RevisionTable{
		ID:   id,
		Axis: aligned.Axis,
		Columns: []types.RevisionLabel{
			{ID: id, Revision: rev0.ID},
			{ID: id, Revision: rev1.ID},
		},
		Values: aligned.Values,
	}
	table.Revisions = w.count(ctx, h, id)

	w.logger.Info("revision history walked",
		"id", id,
		"revisions", table.Revisions.Count,
		"status", table.Revisions.Status)

	return table, nil
}

func (w *Walker) release(ctx context.Context, h provider.History, id string, n int) (*types.RawSeries, error) {
	s, err := h.Release(ctx, n)
	if err != nil {
		return nil, &types.SeriesError{ID: id, Err: fmt.Errorf("failed to fetch release %d: %w", n, err)}
	}
	if s == nil {
		return nil, &types.ProviderError{ID: id, Message: fmt.Sprintf("release %d not returned", n)}
	}
	if s.IsError {
		return nil, &types.ProviderError{ID: id, Message: s.ErrorMessage}
	}
	return s, nil
}

// count requests releases 2, 3, ... until one comes back wholly missing.
// Release 1 is already known to be populated.
func (w *Walker) count(ctx context.Context, h provider.History, id string) types.RevisionCount {
	for n := 2; n <= w.maxRevisions+1; n++ {
		if err := ctx.Err(); err != nil {
			w.logger.Warn("revision count interrupted", "id", id, "release", n, "error", err)
			return types.RevisionCount{Status: types.CountUnavailable}
		}

		s, err := h.Release(ctx, n)
		switch {
		case err != nil:
		case s == nil:
			err = &types.ProviderError{ID: id, Message: fmt.Sprintf("release %d not returned", n)}
		case s.IsError:
			err = &types.ProviderError{ID: id, Message: s.ErrorMessage}
		}
		if err != nil {
			w.logger.Warn("revision count failed", "id", id, "release", n, "error", err)
			return types.RevisionCount{Status: types.CountUnavailable}
		}

		if s.AllMissing() {
			return types.RevisionCount{Count: n - 1, Status: types.CountExact}
		}
	}
	return types.RevisionCount{Count: w.maxRevisions, Status: types.CountExceeded}
}
