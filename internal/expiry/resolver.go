// Package expiry resolves the logical expiry tags configured per index
// (this_week, next_week, this_month, next_month) into concrete calendar
// dates (spec §2 ExpiryResolver, §4.2 stage 1).
package expiry

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/g6/internal/domain"
	"github.com/aristath/g6/internal/holiday"
)

// maxFallbackShift bounds the number of days the resolver will walk
// backward/forward looking for a non-holiday trading day, guarding
// against a pathological all-holiday calendar.
const maxFallbackShift = 10

// Resolver maps expiry tags to concrete dates per index.
type Resolver struct {
	calendar holiday.Calendar
}

// NewResolver builds a Resolver backed by the given holiday calendar.
func NewResolver(calendar holiday.Calendar) *Resolver {
	return &Resolver{calendar: calendar}
}

// Resolution is the output of resolving all of an index's configured
// tags for one cycle (spec §3 ExpiryResolution).
type Resolution struct {
	Index          string
	Dates          map[domain.ExpiryTag]string // tag -> YYYY-MM-DD
	UnresolvedTags []domain.ExpiryTag
}

// Resolve computes the ExpiryResolution for idx as of `now`.
func (r *Resolver) Resolve(idx *domain.IndexConfig, now time.Time) *Resolution {
	res := &Resolution{Index: idx.Symbol, Dates: make(map[domain.ExpiryTag]string)}

	for _, tag := range idx.ExpiryTags {
		date, err := r.resolveTag(idx, tag, now)
		if err != nil {
			res.UnresolvedTags = append(res.UnresolvedTags, tag)
			continue
		}
		res.Dates[tag] = date
	}

	return res
}

func (r *Resolver) resolveTag(idx *domain.IndexConfig, tag domain.ExpiryTag, now time.Time) (string, error) {
	if idx.HasAllowedDates(tag) {
		return r.resolveFromAllowedDates(idx.AllowedExpiryDates[tag], now)
	}

	anchor := time.Weekday(idx.WeekdayAnchor)
	var candidate time.Time

	switch tag {
	case domain.ExpiryThisWeek:
		candidate = nextWeekday(now, anchor, true)
	case domain.ExpiryNextWeek:
		candidate = nextWeekday(now, anchor, true).AddDate(0, 0, 7)
	case domain.ExpiryThisMonth:
		candidate = monthlyWeekday(now.Year(), int(now.Month()), anchor, idx.MonthlyWeekdayOrdinal)
		// If the monthly expiry already passed this month, there is no
		// earlier candidate within the month; callers configuring
		// this_month near month-end should expect this to roll to the
		// computed (past) date — downstream validation/market-hours
		// gating handles a stale date by simply finding no instruments.
	case domain.ExpiryNextMonth:
		y, m := now.Year(), int(now.Month())+1
		if m > 12 {
			m = 1
			y++
		}
		candidate = monthlyWeekday(y, m, anchor, idx.MonthlyWeekdayOrdinal)
	default:
		return "", fmt.Errorf("unknown expiry tag %q", tag)
	}

	resolved, ok := r.applyHolidayFallback(idx.Symbol, candidate)
	if !ok {
		return "", fmt.Errorf("no trading day found near %s for tag %s", candidate.Format("2006-01-02"), tag)
	}
	return resolved.Format("2006-01-02"), nil
}

// resolveFromAllowedDates picks the earliest configured date that is on
// or after `now`'s calendar day, honoring the invariant that resolved
// dates for a restricted index must come from its allowed set (spec §3).
func (r *Resolver) resolveFromAllowedDates(dates []string, now time.Time) (string, error) {
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)
	today := now.Format("2006-01-02")
	for _, d := range sorted {
		if d >= today {
			return d, nil
		}
	}
	return "", fmt.Errorf("no allowed expiry date on or after %s", today)
}

// applyHolidayFallback walks backward then forward from candidate to
// find a non-holiday, non-weekend trading day (spec §2 "forward/backward
// fallback").
func (r *Resolver) applyHolidayFallback(index string, candidate time.Time) (time.Time, bool) {
	if !isClosed(r.calendar, index, candidate) {
		return candidate, true
	}

	for i := 1; i <= maxFallbackShift; i++ {
		back := candidate.AddDate(0, 0, -i)
		if !isClosed(r.calendar, index, back) {
			return back, true
		}
	}
	for i := 1; i <= maxFallbackShift; i++ {
		fwd := candidate.AddDate(0, 0, i)
		if !isClosed(r.calendar, index, fwd) {
			return fwd, true
		}
	}
	return time.Time{}, false
}

func isClosed(cal holiday.Calendar, index string, date time.Time) bool {
	if holiday.IsWeekend(date) {
		return true
	}
	if cal != nil && cal.IsHoliday(index, date) {
		return true
	}
	return false
}

// nextWeekday returns the next date (searching forward from `from`,
// inclusive when inclusive is true) whose Weekday equals anchor.
func nextWeekday(from time.Time, anchor time.Weekday, inclusive bool) time.Time {
	d := from
	if !inclusive {
		d = d.AddDate(0, 0, 1)
	}
	for i := 0; i < 7; i++ {
		if d.Weekday() == anchor {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		}
		d = d.AddDate(0, 0, 1)
	}
	// Unreachable: a 7-day forward scan always finds every weekday once.
	return d
}

// monthlyWeekday returns the date in (year, month) that is the
// `ordinal`-th occurrence of `anchor` weekday, where a negative ordinal
// counts from the end of the month (-1 = last occurrence).
func monthlyWeekday(year, month int, anchor time.Weekday, ordinal int) time.Time {
	if ordinal >= 0 {
		return nthWeekdayFromStart(year, month, anchor, ordinal)
	}
	return nthWeekdayFromEnd(year, month, anchor, -ordinal)
}

func nthWeekdayFromStart(year, month int, anchor time.Weekday, n int) time.Time {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	offset := (int(anchor) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + 7*(maxInt(n, 1)-1)
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func nthWeekdayFromEnd(year, month int, anchor time.Weekday, n int) time.Time {
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(lastDay.Weekday()) - int(anchor) + 7) % 7
	day := lastDay.Day() - offset - 7*(maxInt(n, 1)-1)
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
