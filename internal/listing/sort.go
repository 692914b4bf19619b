package listing

import (
	"slices"
	"strings"
)

// Field names a sortable column.
type Field string

const (
	FieldSeq       Field = "seq"
	FieldTitle     Field = "title"
	FieldDate      Field = "date"
	FieldCreatedAt Field = "createdAt"
	FieldUpdatedAt Field = "updatedAt"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort selects a column and direction.
type Sort struct {
	Field Field
	Order Order
}

// DefaultSort orders rows by descending sequence number.
var DefaultSort = Sort{Field: FieldSeq, Order: Desc}

// ParseSort reads the _sort/_order pair used by the admin frontend. Unknown fields fall back
// to DefaultSort; an unknown order means descending.
func ParseSort(field, order string) Sort {
	s := DefaultSort

	switch strings.TrimSpace(field) {
	case "":
	case "seq":
		s.Field = FieldSeq
	case "title", "email", "name":
		s.Field = FieldTitle
	case "date":
		s.Field = FieldDate
	case "createdAt", "created_at":
		s.Field = FieldCreatedAt
	case "updatedAt", "updated_at":
		s.Field = FieldUpdatedAt
	}

	if strings.EqualFold(strings.TrimSpace(order), string(Asc)) {
		s.Order = Asc
	} else {
		s.Order = Desc
	}

	return s
}

// SortBy returns a stably sorted copy of items. Ties are broken by sequence number.
func SortBy[T any](items []T, view func(T) Row, s Sort) []T {
	out := make([]T, len(items))
	copy(out, items)

	if s.Field == "" {
		s = DefaultSort
	}

	slices.SortStableFunc(out, func(a, b T) int {
		ra, rb := view(a), view(b)
		cmp := compareRows(ra, rb, s.Field)
		if cmp == 0 && s.Field != FieldSeq {
			cmp = compareInt(ra.Seq, rb.Seq)
		}
		if s.Order == Desc {
			return -cmp
		}
		return cmp
	})

	return out
}

func compareRows(a, b Row, field Field) int {
	switch field {
	case FieldTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case FieldDate:
		return compareDates(a.Date, b.Date)
	case FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case FieldUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return compareInt(a.Seq, b.Seq)
	}
}

// compareDates places rows without a parseable date before dated rows.
func compareDates(a, b string) int {
	ta, _, okA := ParseDate(a)
	tb, _, okB := ParseDate(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	default:
		return ta.Compare(tb)
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Window is the half-open [Start, End) slice requested through _start/_end. End <= 0 means
// no upper bound.
type Window struct {
	Start int
	End   int
}

// Page applies the window. Out-of-range bounds are clamped.
func Page[T any](items []T, w Window) []T {
	start := w.Start
	if start < 0 {
		start = 0
	}
	if start > len(items) {
		start = len(items)
	}

	end := len(items)
	if w.End > 0 && w.End < end {
		end = w.End
	}
	if end < start {
		end = start
	}

	return items[start:end]
}
