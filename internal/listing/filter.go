// Package listing implements the in-memory search, filter, sort and windowing stages applied
// to a fully fetched collection before it is shown in a table.
package listing

import (
	"strconv"
	"strings"
	"time"
)

// All is the filter value meaning "no constraint" for status and category.
const All = "all"

// Period restricts rows to a window relative to the current time.
type Period string

const (
	PeriodAll   Period = ""
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod maps user input onto a Period. Unknown values mean no constraint.
func ParsePeriod(raw string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodDay, "today":
		return PeriodDay
	case PeriodWeek:
		return PeriodWeek
	case PeriodMonth:
		return PeriodMonth
	default:
		return PeriodAll
	}
}

// Row is the projection of a record that the pipeline inspects.
type Row struct {
	Seq      int64
	Title    string
	Search   []string
	Date     string
	Status   string
	Category string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Criteria is the set of user-controlled filters. The zero value matches everything.
type Criteria struct {
	Search    string
	StartDate string
	EndDate   string
	Status    string
	Category  string
	Period    Period

	// Now anchors Period; the zero value means time.Now().
	Now time.Time
}

// IsEmpty reports whether no filter is active.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Search) == "" &&
		strings.TrimSpace(c.StartDate) == "" &&
		strings.TrimSpace(c.EndDate) == "" &&
		isAll(c.Status) &&
		isAll(c.Category) &&
		c.Period == PeriodAll
}

// Filter returns the items whose row satisfies every active criterion, preserving input order.
func Filter[T any](items []T, view func(T) Row, c Criteria) []T {
	if c.IsEmpty() {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}

	m := c.compile()
	out := make([]T, 0, len(items))
	for _, item := range items {
		if m.matches(view(item)) {
			out = append(out, item)
		}
	}
	return out
}

// Matches reports whether a single row satisfies the criteria.
func Matches(row Row, c Criteria) bool {
	return c.compile().matches(row)
}

type matcher struct {
	search   string
	start    *time.Time
	end      *time.Time
	status   string
	category string
	period   Period
	now      time.Time
}

func (c Criteria) compile() matcher {
	m := matcher{
		search:   strings.ToLower(strings.TrimSpace(c.Search)),
		status:   strings.TrimSpace(c.Status),
		category: strings.TrimSpace(c.Category),
		period:   c.Period,
		now:      c.Now,
	}
	if m.now.IsZero() {
		m.now = time.Now()
	}
	if isAll(m.status) {
		m.status = ""
	}
	if isAll(m.category) {
		m.category = ""
	}

	if start, _, ok := ParseDate(c.StartDate); ok {
		m.start = &start
	}
	if end, dateOnly, ok := ParseDate(c.EndDate); ok {
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		m.end = &end
	}

	return m
}

func (m matcher) matches(row Row) bool {
	return m.matchesSearch(row) &&
		m.matchesDateRange(row) &&
		m.matchesPeriod(row) &&
		(m.status == "" || row.Status == m.status) &&
		(m.category == "" || row.Category == m.category)
}

func (m matcher) matchesSearch(row Row) bool {
	if m.search == "" {
		return true
	}
	if strings.Contains(strings.ToLower(row.Title), m.search) {
		return true
	}
	for _, field := range row.Search {
		if strings.Contains(strings.ToLower(field), m.search) {
			return true
		}
	}
	return row.Seq > 0 && strings.Contains(strconv.FormatInt(row.Seq, 10), m.search)
}

func (m matcher) matchesDateRange(row Row) bool {
	if m.start == nil && m.end == nil {
		return true
	}
	date, _, ok := ParseDate(row.Date)
	if !ok {
		return true
	}
	if m.start != nil && date.Before(*m.start) {
		return false
	}
	if m.end != nil && date.After(*m.end) {
		return false
	}
	return true
}

func (m matcher) matchesPeriod(row Row) bool {
	if m.period == PeriodAll {
		return true
	}
	date, dateOnly, ok := ParseDate(row.Date)
	if !ok {
		return true
	}

	now := m.now
	if dateOnly {
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, now.Location())
	} else {
		date = date.In(now.Location())
	}

	switch m.period {
	case PeriodDay:
		y1, m1, d1 := date.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case PeriodWeek:
		return !date.Before(now.Add(-7 * 24 * time.Hour))
	case PeriodMonth:
		return date.Year() == now.Year() && date.Month() == now.Month()
	default:
		return true
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a calendar date or a timestamp. dateOnly is true for YYYY-MM-DD input.
// Blank or malformed input reports ok=false.
func ParseDate(raw string) (t time.Time, dateOnly bool, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, false
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed, true, true
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, false, true
		}
	}
	return time.Time{}, false, false
}

func isAll(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || strings.EqualFold(value, All)
}
