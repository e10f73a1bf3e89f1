// Package calendar builds the immutable simulation timestep sequence from a
// {start, end, step} specification. A Timestepper is generated once at model
// build time and shared read-only across all scenarios.
package calendar

import (
	"fmt"
	"time"
)

// StepKind distinguishes the cadence used to advance the calendar.
type StepKind int

const (
	// StepDays advances by a fixed number of calendar days.
	StepDays StepKind = iota
	// StepHours advances by a fixed number of hours.
	StepHours
	// StepMonthly advances to the same day-of-month next month (cadence, not
	// a fixed duration: duration_days varies with month length).
	StepMonthly
	// StepAnnual advances to the same calendar date next year.
	StepAnnual
)

// StepSpec describes the cadence of a Timestepper.
type StepSpec struct {
	Kind StepKind
	N    int // multiplier, e.g. N=7 with StepDays is weekly
}

// Timestep is one discrete interval of the simulation calendar.
type Timestep struct {
	Index         int
	Date          time.Time
	DurationDays  float64
	IsFirst       bool
	DayOfYearIdx  int // 0-based, leap-year aware
}

// Timestepper is the immutable calendar generated from {start, end, step}.
type Timestepper struct {
	Start time.Time
	End   time.Time
	Step  StepSpec
	steps []Timestep
}

// New generates the full timestep sequence. start is inclusive; the last
// generated timestep's date is <= end.
func New(start, end time.Time, step StepSpec) (*Timestepper, error) {
	if !end.After(start) && !end.Equal(start) {
		return nil, fmt.Errorf("calendar: end %s is before start %s", end, start)
	}
	if step.N <= 0 {
		return nil, fmt.Errorf("calendar: step.N must be positive, got %d", step.N)
	}

	t := &Timestepper{Start: start, End: end, Step: step}
	cur := start
	idx := 0
	for !cur.After(end) {
		next := t.advance(cur)
		dur := next.Sub(cur).Hours() / 24.0
		t.steps = append(t.steps, Timestep{
			Index:        idx,
			Date:         cur,
			DurationDays: dur,
			IsFirst:      idx == 0,
			DayOfYearIdx: cur.YearDay() - 1,
		})
		cur = next
		idx++
	}
	return t, nil
}

func (t *Timestepper) advance(cur time.Time) time.Time {
	switch t.Step.Kind {
	case StepDays:
		return cur.AddDate(0, 0, t.Step.N)
	case StepHours:
		return cur.Add(time.Duration(t.Step.N) * time.Hour)
	case StepMonthly:
		return cur.AddDate(0, t.Step.N, 0)
	case StepAnnual:
		return cur.AddDate(t.Step.N, 0, 0)
	default:
		return cur.AddDate(0, 0, 1)
	}
}

// EndDate returns the exclusive end of this timestep's interval, i.e. the
// date the next timestep would start on.
func (ts Timestep) EndDate() time.Time {
	return ts.Date.Add(time.Duration(ts.DurationDays * float64(24*time.Hour)))
}

// Steps returns the generated timestep sequence.
func (t *Timestepper) Steps() []Timestep { return t.steps }

// Len returns the number of timesteps in the horizon.
func (t *Timestepper) Len() int { return len(t.steps) }

// At returns the timestep at index i.
func (t *Timestepper) At(i int) Timestep { return t.steps[i] }
