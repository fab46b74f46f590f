package interval

import (
	"errors"
	"sort"
	"time"
)

var ErrInvalidInterval = errors.New("interval end must be after start")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func New(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

// FromDuration builds [start, start+d).
func FromDuration(start time.Time, d time.Duration) (Interval, error) {
	return New(start, start.Add(d))
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether a and b share any instant. Touching endpoints
// do not overlap, so back-to-back bookings are legal.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (iv Interval) Overlaps(other Interval) bool {
	return Overlaps(iv, other)
}

// Contains reports whether other lies entirely inside iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// FreeGaps returns the parts of window not covered by busy, keeping only
// gaps of at least minDuration. Busy intervals may be unsorted, may
// overlap each other and may extend past the window.
func FreeGaps(window Interval, busy []Interval, minDuration time.Duration) []Interval {
	if minDuration <= 0 || !window.End.After(window.Start) {
		return nil
	}

	sorted := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if Overlaps(window, b) {
			sorted = append(sorted, b)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var gaps []Interval
	cursor := window.Start
	for _, b := range sorted {
		if b.Start.After(cursor) {
			if b.Start.Sub(cursor) >= minDuration {
				gaps = append(gaps, Interval{Start: cursor, End: b.Start})
			}
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(window.End) {
			return gaps
		}
	}

	if window.End.Sub(cursor) >= minDuration {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}

// WallClock keeps the reading of t's local clock and relabels it as UTC,
// the form every stored clinic timestamp takes.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Now is the clinic wall clock, comparable with stored appointment times.
func Now() time.Time {
	return WallClock(time.Now())
}

// DateOf truncates t to midnight of its calendar day, keeping its location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayWindow returns [midnight, next midnight) for the day containing t.
func DayWindow(t time.Time) Interval {
	start := DateOf(t)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// SameDay compares calendar dates only.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween counts calendar days from `from` to `to`. Clock times are
// ignored, so 23:59 on one day to 00:01 on the next is one day. The result
// is negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
