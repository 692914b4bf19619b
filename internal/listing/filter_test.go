package listing

import (
	"testing"
	"time"
)

type record struct {
	seq      int64
	title    string
	location string
	date     string
	status   string
	category string
	created  time.Time
}

func view(r record) Row {
	return Row{
		Seq:       r.seq,
		Title:     r.title,
		Search:    []string{r.location},
		Date:      r.date,
		Status:    r.status,
		Category:  r.category,
		CreatedAt: r.created,
	}
}

func titles(records []record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.title)
	}
	return out
}

func sameTitles(t *testing.T, got []record, want ...string) {
	t.Helper()

	names := titles(got)
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestFilterByStatusAndSearchComposeWithAnd(t *testing.T) {
	t.Parallel()

	records := []record{
		{seq: 1, title: "Alpha", status: "draft"},
		{seq: 2, title: "Beta", status: "published"},
	}

	sameTitles(t, Filter(records, view, Criteria{Status: "draft"}), "Alpha")
	sameTitles(t, Filter(records, view, Criteria{Status: "draft", Search: "Beta"}))
}

func TestEmptyCriteriaIsIdentity(t *testing.T) {
	t.Parallel()

	records := []record{
		{seq: 3, title: "Gamma", status: "rejected", date: "not a date"},
		{seq: 1, title: "Alpha", status: "draft", category: "c1"},
		{seq: 2, title: "Beta", status: "published", date: "2024-02-01"},
	}

	criteria := Criteria{Status: All, Category: All}
	if !criteria.IsEmpty() {
		t.Fatalf("expected all/all criteria to be empty")
	}

	sameTitles(t, Filter(records, view, criteria), "Gamma", "Alpha", "Beta")
}

func TestSearchMatchesTitleLocationAndSequence(t *testing.T) {
	t.Parallel()

	records := []record{
		{seq: 12, title: "Solar Roof", location: "Building A"},
		{seq: 7, title: "Hackathon", location: "Main Hall"},
		{seq: 3, title: "Open Day", location: "Campus"},
	}

	sameTitles(t, Filter(records, view, Criteria{Search: "solar"}), "Solar Roof")
	sameTitles(t, Filter(records, view, Criteria{Search: "HALL"}), "Hackathon")
	sameTitles(t, Filter(records, view, Criteria{Search: "12"}), "Solar Roof")
	sameTitles(t, Filter(records, view, Criteria{Search: "   "}), "Solar Roof", "Hackathon", "Open Day")
}

func TestDateRangeIsInclusiveAndIgnoresUndatedRows(t *testing.T) {
	t.Parallel()

	records := []record{
		{seq: 1, title: "Before", date: "2024-01-31"},
		{seq: 2, title: "Start", date: "2024-02-01"},
		{seq: 3, title: "End", date: "2024-02-29"},
		{seq: 4, title: "After", date: "2024-03-01"},
		{seq: 5, title: "Undated"},
		{seq: 6, title: "Garbled", date: "31/02/2024"},
		{seq: 7, title: "Evening", date: "2024-02-29T21:30:00Z"},
	}

	got := Filter(records, view, Criteria{StartDate: "2024-02-01", EndDate: "2024-02-29"})
	sameTitles(t, got, "Start", "End", "Undated", "Garbled", "Evening")
}

func TestMalformedBoundsImposeNoConstraint(t *testing.T) {
	t.Parallel()

	records := []record{
		{seq: 1, title: "Old", date: "2001-01-01"},
		{seq: 2, title: "New", date: "2030-01-01"},
	}

	sameTitles(t, Filter(records, view, Criteria{StartDate: "yesterday", EndDate: "2015-01-01"}), "Old")
	sameTitles(t, Filter(records, view, Criteria{StartDate: "2020-01-01", EndDate: "??"}), "New")
	sameTitles(t, Filter(records, view, Criteria{StartDate: "??", EndDate: "??"}), "Old", "New")
}

func TestCategoryFilterMatchesExactID(t *testing.T) {
	t.Parallel()

	records := []record{
		{seq: 1, title: "Tagged", category: "cat-1"},
		{seq: 2, title: "Other", category: "cat-2"},
		{seq: 3, title: "None"},
	}

	sameTitles(t, Filter(records, view, Criteria{Category: "cat-1"}), "Tagged")
	sameTitles(t, Filter(records, view, Criteria{Category: "ALL"}), "Tagged", "Other", "None")
}

func TestPeriodFilters(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	records := []record{
		{seq: 1, title: "Today", date: "2024-06-15T08:00:00Z"},
		{seq: 2, title: "ThisWeek", date: "2024-06-10T08:00:00Z"},
		{seq: 3, title: "ThisMonth", date: "2024-06-01"},
		{seq: 4, title: "LastMonth", date: "2024-05-30T08:00:00Z"},
	}

	sameTitles(t, Filter(records, view, Criteria{Period: PeriodDay, Now: now}), "Today")
	sameTitles(t, Filter(records, view, Criteria{Period: PeriodWeek, Now: now}), "Today", "ThisWeek")
	sameTitles(t, Filter(records, view, Criteria{Period: PeriodMonth, Now: now}), "Today", "ThisWeek", "ThisMonth")
}

func TestEveryCombinationIsConjunction(t *testing.T) {
	t.Parallel()

	records := []record{
		{seq: 1, title: "Alpha", status: "draft", category: "c1", date: "2024-01-10", location: "North"},
		{seq: 2, title: "Beta", status: "published", category: "c1", date: "2024-02-10", location: "South"},
		{seq: 3, title: "Gamma", status: "draft", category: "c2", date: "2024-03-10", location: "North"},
		{seq: 4, title: "Delta", status: "rejected", category: "", date: "", location: "East"},
	}

	searches := []string{"", "north", "a", "zzz"}
	starts := []string{"", "2024-02-01", "bad"}
	ends := []string{"", "2024-02-28"}
	statuses := []string{"all", "draft", "published"}
	categories := []string{"all", "c1", "c2"}

	for _, search := range searches {
		for _, start := range starts {
			for _, end := range ends {
				for _, status := range statuses {
					for _, category := range categories {
						c := Criteria{Search: search, StartDate: start, EndDate: end, Status: status, Category: category}
						got := Filter(records, view, c)

						var want []string
						for _, r := range records {
							parts := []Criteria{
								{Search: search},
								{StartDate: start, EndDate: end},
								{Status: status},
								{Category: category},
							}
							ok := true
							for _, part := range parts {
								if !Matches(view(r), part) {
									ok = false
								}
							}
							if ok {
								want = append(want, r.title)
							}
						}

						sameTitles(t, got, want...)
					}
				}
			}
		}
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	if _, dateOnly, ok := ParseDate("2024-02-29"); !ok || !dateOnly {
		t.Fatalf("expected calendar date to parse as date-only")
	}
	if _, dateOnly, ok := ParseDate("2024-02-29T10:00:00+09:00"); !ok || dateOnly {
		t.Fatalf("expected timestamp to parse with time")
	}
	if _, _, ok := ParseDate("Feb 29"); ok {
		t.Fatalf("expected malformed input to be rejected")
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	cases := map[string]Period{
		"":        PeriodAll,
		"today":   PeriodDay,
		"Day":     PeriodDay,
		"week":    PeriodWeek,
		" month ": PeriodMonth,
		"decade":  PeriodAll,
	}
	for input, want := range cases {
		if got := ParsePeriod(input); got != want {
			t.Errorf("ParsePeriod(%q) = %q, want %q", input, got, want)
		}
	}
}
