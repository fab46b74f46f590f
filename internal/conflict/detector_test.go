package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/interval"
)

type booking struct {
	id       uuid.UUID
	holders  []uuid.UUID
	interval interval.Interval
}

type stubReader struct {
	bookings []booking
	err      error
}

func (s *stubReader) ListBusy(_ context.Context, _ ResourceKind, id uuid.UUID, window interval.Interval, exclude uuid.UUID) ([]interval.Interval, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []interval.Interval
	for _, b := range s.bookings {
		if b.id == exclude {
			continue
		}
		for _, h := range b.holders {
			if h == id && interval.Overlaps(b.interval, window) {
				out = append(out, b.interval)
			}
		}
	}
	return out, nil
}

func at(hhmm string) time.Time {
	t, _ := time.Parse("2006-01-02 15:04", "2025-11-10 "+hhmm)
	return t
}

func span(from, to string) interval.Interval {
	return interval.Interval{Start: at(from), End: at(to)}
}

func TestDetector_HasConflict(t *testing.T) {
	doctor := uuid.New()
	apptID := uuid.New()
	reader := &stubReader{bookings: []booking{
		{id: apptID, holders: []uuid.UUID{doctor}, interval: span("09:00", "09:45")},
	}}
	d := NewDetector(reader)
	ctx := context.Background()

	busy, err := d.HasConflict(ctx, KindDoctor, doctor, span("09:30", "10:00"))
	require.NoError(t, err)
	assert.True(t, busy)

	busy, err = d.HasConflict(ctx, KindDoctor, doctor, span("09:45", "10:15"))
	require.NoError(t, err)
	assert.False(t, busy, "back-to-back bookings must not conflict")

	busy, err = d.HasConflictExcluding(ctx, KindDoctor, doctor, span("09:30", "10:00"), apptID)
	require.NoError(t, err)
	assert.False(t, busy)

	busy, err = d.HasConflict(ctx, KindDoctor, uuid.New(), span("09:00", "10:00"))
	require.NoError(t, err)
	assert.False(t, busy)
}

func TestDetector_ListBusyIntervals_SortedAndScopedToDay(t *testing.T) {
	room := uuid.New()
	nextDay := interval.Interval{Start: at("10:00").AddDate(0, 0, 1), End: at("11:00").AddDate(0, 0, 1)}
	reader := &stubReader{bookings: []booking{
		{id: uuid.New(), holders: []uuid.UUID{room}, interval: span("14:00", "15:00")},
		{id: uuid.New(), holders: []uuid.UUID{room}, interval: span("08:00", "08:30")},
		{id: uuid.New(), holders: []uuid.UUID{room}, interval: nextDay},
	}}

	got, err := NewDetector(reader).ListBusyIntervals(context.Background(), KindRoom, room, at("12:00"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, span("08:00", "08:30"), got[0])
	assert.Equal(t, span("14:00", "15:00"), got[1])
}

func TestDetector_PropagatesReaderError(t *testing.T) {
	d := NewDetector(&stubReader{err: errors.New("boom")})

	_, err := d.HasConflict(context.Background(), KindRoom, uuid.New(), span("08:00", "09:00"))
	assert.Error(t, err)
}
