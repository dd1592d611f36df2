/**
 * @description
 * This package implements the recurrence engine: a pure function mapping a
 * credit's reset frequency and the anchor date of the user's card to the next
 * strictly-future reset date.
 *
 * All math is done in local calendar terms at day granularity. The anchor's
 * month/day component is the recurrence phase; the time of day of both the
 * anchor and "now" is ignored.
 */
package schedule

import (
	"time"

	"github.com/clawback/clawback-service/internal/domain"
)

// NextResetDate returns the next reset date strictly after now for a credit
// with the given frequency, phase-aligned to the anchor's month/day. The
// second return is false for one-time credits, which never recur.
//
// When the anchor day does not exist in a target month (day 31 in a 30-day
// month, day 29 in a non-leap February) the date is clamped to the last valid
// day of that month. It never rolls over into the following month.
func NextResetDate(freq domain.Frequency, anchor, now time.Time) (time.Time, bool) {
	today := Day(now)
	loc := today.Location()

	switch freq {
	case domain.FrequencyOneTime:
		return time.Time{}, false

	case domain.FrequencyMonthly:
		// Always the anchor day in the month after the current one.
		next := monthIndex(today.Year(), today.Month()) + 1
		return dateInMonth(next, anchor.Day(), loc), true

	case domain.FrequencyEvery4Years, domain.FrequencyEvery5Years:
		return nextYearCycle(freq, anchor, today, loc), true

	case domain.FrequencyQuarterly, domain.FrequencySemiannual, domain.FrequencyAnnual:
		return nextMonthCycle(freq, anchor, today, loc), true
	}

	return time.Time{}, false
}

// Day strips the time-of-day component, keeping the location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// nextYearCycle handles the every-4-years and every-5-years frequencies. The
// candidate cycle index is floor((currentYear - startYear) / N), floored at
// zero; if that cycle's date is not strictly in the future, one more N-year
// cycle is added.
func nextYearCycle(freq domain.Frequency, anchor, today time.Time, loc *time.Location) time.Time {
	step := 4
	if freq == domain.FrequencyEvery5Years {
		step = 5
	}

	cycles := (today.Year() - anchor.Year()) / step
	if cycles < 0 {
		cycles = 0
	}

	candidate := dateInMonth(monthIndex(anchor.Year()+cycles*step, anchor.Month()), anchor.Day(), loc)
	if !candidate.After(today) {
		candidate = dateInMonth(monthIndex(anchor.Year()+(cycles+1)*step, anchor.Month()), anchor.Day(), loc)
	}
	return candidate
}

// nextMonthCycle handles the quarterly, semiannual and annual frequencies
// (steps of 3, 6 and 12 months). The search starts from the anchor month/day
// in the current year; if that candidate is still in the future it steps back
// once to the most recent past-or-current occurrence, then advances by the
// step size until strictly after today.
func nextMonthCycle(freq domain.Frequency, anchor, today time.Time, loc *time.Location) time.Time {
	step := 12
	switch freq {
	case domain.FrequencyQuarterly:
		step = 3
	case domain.FrequencySemiannual:
		step = 6
	}

	idx := monthIndex(today.Year(), anchor.Month())
	candidate := dateInMonth(idx, anchor.Day(), loc)
	if candidate.After(today) {
		idx -= step
		candidate = dateInMonth(idx, anchor.Day(), loc)
	}
	for !candidate.After(today) {
		idx += step
		candidate = dateInMonth(idx, anchor.Day(), loc)
	}
	return candidate
}

// monthIndex flattens a year/month pair into a single month count so stepping
// across year boundaries is plain integer arithmetic.
func monthIndex(year int, month time.Month) int {
	return year*12 + int(month) - 1
}

// dateInMonth builds the date for a flattened month index, clamping the day
// to the month's actual last day.
func dateInMonth(idx, day int, loc *time.Location) time.Time {
	year := idx / 12
	month := time.Month(idx%12 + 1)
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// daysInMonth returns the number of days in the given month. Day zero of the
// following month normalizes to this month's last day.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
