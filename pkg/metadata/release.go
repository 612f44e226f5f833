package metadata

import (
	"context"
	"time"

	"github.com/vjranagit/mbseries/pkg/types"
)

// ReleaseEvent selects which release event of a series to resolve.
type ReleaseEvent int

const (
	NextRelease ReleaseEvent = iota
	PreviousRelease
)

func (r ReleaseEvent) key() string {
	if r == NextRelease {
		return KeyNextReleaseEvent
	}
	return KeyLastReleaseEvent
}

func (r ReleaseEvent) String() string {
	if r == NextRelease {
		return "next"
	}
	return "previous"
}

// ParseReleaseEvent accepts "next" or "previous".
func ParseReleaseEvent(s string) (ReleaseEvent, bool) {
	switch s {
	case "next":
		return NextRelease, true
	case "previous":
		return PreviousRelease, true
	}
	return 0, false
}

// unknownReleaseTime is returned whenever the release link or event is
// missing.
var unknownReleaseTime = types.UnknownDate.Time()

// ReleaseDate returns the calendar date of a release event, or
// types.UnknownDate when the provider has none.
func (d *Describer) ReleaseDate(ctx context.Context, id string, event ReleaseEvent) (types.Date, error) {
	t, err := d.ReleaseTime(ctx, id, event)
	if err != nil {
		return types.Date{}, err
	}
	return types.DateOf(t), nil
}

// ReleaseTime returns the full timestamp of a release event, keeping the
// provider's location. Unknown events resolve to 1900-01-01T00:00:00Z.
func (d *Describer) ReleaseTime(ctx context.Context, id string, event ReleaseEvent) (time.Time, error) {
	e, err := d.entity(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return d.releaseTime(ctx, id, e, event)
}

func (d *Describer) releaseTime(ctx context.Context, id string, e *types.Entity, event ReleaseEvent) (time.Time, error) {
	link, ok := e.Metadata.FirstValue(KeyRelease)
	if !ok {
		return unknownReleaseTime, nil
	}

	release, err := d.src.FetchEntity(ctx, link)
	if err != nil {
		return time.Time{}, &types.SeriesError{ID: id, Err: err}
	}
	if release.IsError {
		return unknownReleaseTime, nil
	}

	t, ok := release.Metadata.FirstTime(event.key())
	if !ok {
		return unknownReleaseTime, nil
	}
	return t, nil
}
