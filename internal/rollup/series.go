package rollup

import (
	"fmt"
	"time"
)

// Window is an inclusive calendar-date range. A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// ParseWindow reads YYYY-MM-DD bounds; empty strings leave a bound open.
func ParseWindow(from, to string) (Window, error) {
	var w Window
	var err error
	if from != "" {
		if w.From, err = time.Parse(time.DateOnly, from); err != nil {
			return Window{}, fmt.Errorf("invalid from date %q: %w", from, err)
		}
	}
	if to != "" {
		if w.To, err = time.Parse(time.DateOnly, to); err != nil {
			return Window{}, fmt.Errorf("invalid to date %q: %w", to, err)
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return Window{}, fmt.Errorf("window ends (%s) before it starts (%s)", to, from)
	}
	return w, nil
}

// Contains reports whether the YYYY-MM-DD date falls inside the window.
func (w Window) Contains(date string) bool {
	if !w.From.IsZero() && date < DateKey(w.From) {
		return false
	}
	if !w.To.IsZero() && date > DateKey(w.To) {
		return false
	}
	return true
}

// Filter returns the points inside the window, order preserved.
func (w Window) Filter(points []AggregatedPoint) []AggregatedPoint {
	if w.From.IsZero() && w.To.IsZero() {
		return points
	}
	var out []AggregatedPoint
	for _, p := range points {
		if w.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out
}

// Latest returns the last point of an ascending series.
func Latest(points []AggregatedPoint) (AggregatedPoint, bool) {
	if len(points) == 0 {
		return AggregatedPoint{}, false
	}
	return points[len(points)-1], true
}

// Monthly keeps the latest point of every calendar month, ascending.
// The input must be sorted by date, as Resolve returns it.
func Monthly(points []AggregatedPoint) []AggregatedPoint {
	var out []AggregatedPoint
	for _, p := range points {
		if n := len(out); n > 0 && month(out[n-1].Date) == month(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func month(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}
