// Package slot maps wall-clock instants to the named daily ordering windows.
//
// The day has three cut points, expressed as minutes since local midnight:
// the Morning window runs from midnight to its end boundary (inclusive), the
// Evening window from its start to its end boundary (inclusive). Everything
// else is "no active slot". All functions are pure: callers pass instants
// already converted to the reference timezone.
package slot

import (
	"fmt"
	"time"
)

// Name identifies one of the daily ordering windows.
type Name string

const (
	Morning Name = "morning"
	Evening Name = "evening"
)

// Validate checks if the Name is a valid enum value.
func (n Name) Validate() error {
	switch n {
	case Morning, Evening:
		return nil
	default:
		return fmt.Errorf("unknown slot name: %q", n)
	}
}

// Boundaries holds the three daily cut points, as minutes since local
// midnight. Boundaries are inclusive: an instant at exactly MorningEnd still
// belongs to the Morning slot.
type Boundaries struct {
	MorningEnd   int // Morning runs [00:00, MorningEnd]
	EveningStart int // Evening runs [EveningStart, EveningEnd]
	EveningEnd   int
}

// DefaultBoundaries returns the stock windows: Morning until 10:30, Evening
// 15:00 to 17:30.
func DefaultBoundaries() Boundaries {
	return Boundaries{
		MorningEnd:   10*60 + 30,
		EveningStart: 15 * 60,
		EveningEnd:   17*60 + 30,
	}
}

// Validate checks that the cut points are ordered within one day.
func (b Boundaries) Validate() error {
	if b.MorningEnd < 0 || b.EveningEnd >= 24*60 {
		return fmt.Errorf("boundaries must fall within one day, got %+v", b)
	}
	if b.MorningEnd >= b.EveningStart {
		return fmt.Errorf("morning end (%d) must precede evening start (%d)", b.MorningEnd, b.EveningStart)
	}
	if b.EveningStart > b.EveningEnd {
		return fmt.Errorf("evening start (%d) must not exceed evening end (%d)", b.EveningStart, b.EveningEnd)
	}
	return nil
}

// Result reports where an instant falls relative to the ordering windows.
// Exactly one of the two field groups is meaningful, selected by Active.
type Result struct {
	Active bool

	// Set when Active: the open window and the last instant it accepts orders.
	Name      Name
	WindowEnd time.Time

	// Set when !Active: the next window to open and when it opens. Past the
	// Evening end this wraps to the following day's Morning at midnight.
	NextName  Name
	NextOpens time.Time
}

// Classify maps an instant to its ordering window, or to the next window to
// open. Total and deterministic: it always returns a value.
func (b Boundaries) Classify(t time.Time) Result {
	minutes := minuteOfDay(t)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	switch {
	case minutes <= b.MorningEnd:
		return Result{
			Active:    true,
			Name:      Morning,
			WindowEnd: midnight.Add(time.Duration(b.MorningEnd) * time.Minute),
		}
	case minutes >= b.EveningStart && minutes <= b.EveningEnd:
		return Result{
			Active:    true,
			Name:      Evening,
			WindowEnd: midnight.Add(time.Duration(b.EveningEnd) * time.Minute),
		}
	case minutes < b.EveningStart:
		return Result{
			NextName:  Evening,
			NextOpens: midnight.Add(time.Duration(b.EveningStart) * time.Minute),
		}
	default:
		// Past the Evening end: the next window is tomorrow's Morning.
		return Result{
			NextName:  Morning,
			NextOpens: midnight.AddDate(0, 0, 1),
		}
	}
}

// BelongsTo re-derives whether an already recorded timestamp falls inside the
// named window. It is the same boundary arithmetic as Classify restated as a
// predicate; the two must never disagree.
func (b Boundaries) BelongsTo(t time.Time, name Name) bool {
	minutes := minuteOfDay(t)
	switch name {
	case Morning:
		return minutes <= b.MorningEnd
	case Evening:
		return minutes >= b.EveningStart && minutes <= b.EveningEnd
	default:
		return false
	}
}

// MinutesUntilOpen returns how many minutes remain until the next window
// opens, rounded up. Only meaningful for inactive results.
func (r Result) MinutesUntilOpen(now time.Time) int {
	if r.Active {
		return 0
	}
	remaining := r.NextOpens.Sub(now)
	return int((remaining + time.Minute - 1) / time.Minute)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
