package conflict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/interval"
)

type ResourceKind string

const (
	KindDoctor      ResourceKind = "doctor"
	KindRoom        ResourceKind = "room"
	KindParticipant ResourceKind = "participant"
)

// BusyReader returns the intervals of active (SCHEDULED, CHECKED_IN,
// IN_PROGRESS) appointments that hold the resource and overlap window.
// Doctors and participants are both employees: an employee is busy in
// either role regardless of which kind is queried. exclude, when not
// uuid.Nil, skips that appointment.
type BusyReader interface {
	ListBusy(ctx context.Context, kind ResourceKind, id uuid.UUID, window interval.Interval, exclude uuid.UUID) ([]interval.Interval, error)
}

// Detector answers busy/free questions by scanning active bookings. It keeps
// no state of its own; wrap a transaction-scoped reader to get a consistent
// snapshot inside a write.
type Detector struct {
	reader BusyReader
}

func NewDetector(reader BusyReader) *Detector {
	return &Detector{reader: reader}
}

func (d *Detector) HasConflict(ctx context.Context, kind ResourceKind, id uuid.UUID, candidate interval.Interval) (bool, error) {
	return d.HasConflictExcluding(ctx, kind, id, candidate, uuid.Nil)
}

// HasConflictExcluding ignores one appointment, so an appointment being
// delayed or rescheduled never conflicts with itself.
func (d *Detector) HasConflictExcluding(ctx context.Context, kind ResourceKind, id uuid.UUID, candidate interval.Interval, exclude uuid.UUID) (bool, error) {
	busy, err := d.reader.ListBusy(ctx, kind, id, candidate, exclude)
	if err != nil {
		return false, fmt.Errorf("list busy %s %s: %w", kind, id, err)
	}
	for _, b := range busy {
		if interval.Overlaps(b, candidate) {
			return true, nil
		}
	}
	return false, nil
}

// ListBusyIntervals returns the resource's busy intervals touching date,
// sorted by start.
func (d *Detector) ListBusyIntervals(ctx context.Context, kind ResourceKind, id uuid.UUID, date time.Time) ([]interval.Interval, error) {
	return d.ListBusyWithin(ctx, kind, id, interval.DayWindow(date))
}

func (d *Detector) ListBusyWithin(ctx context.Context, kind ResourceKind, id uuid.UUID, window interval.Interval) ([]interval.Interval, error) {
	busy, err := d.reader.ListBusy(ctx, kind, id, window, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("list busy %s %s: %w", kind, id, err)
	}
	out := make([]interval.Interval, 0, len(busy))
	for _, b := range busy {
		if interval.Overlaps(b, window) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}
