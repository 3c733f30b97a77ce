package datelabel

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var madrid = time.FixedZone("CET", 3600)

func TestLabelFor_Today(t *testing.T) {
	now := time.Date(2024, 3, 5, 18, 30, 0, 0, madrid)
	for _, s := range []string{
		"2024-03-05T00:00:00",
		"2024-03-05T23:59:59",
		"2024-03-05",
		"2024-03-05T10:00:00.1234567",
	} {
		if got := LabelFor(s, now); got != LabelToday {
			t.Errorf("LabelFor(%q) = %q, want %q", s, got, LabelToday)
		}
	}
}

func TestLabelFor_Yesterday(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, madrid)
	if got := LabelFor("2024-02-29T22:00:00", now); got != LabelYesterday {
		t.Errorf("LabelFor = %q, want %q", got, LabelYesterday)
	}
}

func TestLabelFor_ZonedTimeUsesLocalCalendarDay(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, madrid)
	// 23:30Z on the 4th is 00:30 on the 5th in CET
	if got := LabelFor("2024-03-04T23:30:00Z", now); got != LabelToday {
		t.Errorf("LabelFor = %q, want %q", got, LabelToday)
	}
}

func TestLabelFor_OlderDateUsesLongForm(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, madrid)
	tests := map[string]string{
		"2024-03-03T08:00:00": "3 de marzo, 2024",
		"2023-12-25":          "25 de diciembre, 2023",
		"2024-09-01T00:00:00": "1 de septiembre, 2024",
	}
	for in, want := range tests {
		if got := LabelFor(in, now); got != want {
			t.Errorf("LabelFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLabelFor_UnparsableReturnsInput(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, madrid)
	for _, s := range []string{"", "ayer por la tarde", "2024-13-45", "05/03/2024"} {
		if got := LabelFor(s, now); got != s {
			t.Errorf("LabelFor(%q) = %q, want input unchanged", s, got)
		}
	}
}

func TestIsToday(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, madrid)
	if !IsToday("2024-03-05T01:00:00", now) {
		t.Error("IsToday = false, want true")
	}
	if IsToday("2024-03-04T01:00:00", now) {
		t.Error("IsToday = true for yesterday, want false")
	}
	if IsToday("not a date", now) {
		t.Error("IsToday = true for garbage, want false")
	}
}

type dated struct {
	ID   int
	Date string
}

func dateOf(d dated) string { return d.Date }

func TestSortByRecency_DescendingAndStable(t *testing.T) {
	in := []dated{
		{1, "2024-03-01T10:00:00"},
		{2, "2024-03-05T10:00:00"},
		{3, "2024-03-01T10:00:00"},
		{4, "garbage"},
		{5, "2024-03-05T10:00:00"},
	}
	got := SortByRecency(in, dateOf)
	want := []dated{
		{2, "2024-03-05T10:00:00"},
		{5, "2024-03-05T10:00:00"},
		{1, "2024-03-01T10:00:00"},
		{3, "2024-03-01T10:00:00"},
		{4, "garbage"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortByRecency mismatch (-want +got):\n%s", diff)
	}
}

func TestSortByRecency_DoesNotMutateInput(t *testing.T) {
	in := []dated{{1, "2024-01-01"}, {2, "2024-02-01"}}
	snapshot := append([]dated(nil), in...)

	_ = SortByRecency(in, dateOf)

	if diff := cmp.Diff(snapshot, in); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestSortByRecency_Idempotent(t *testing.T) {
	in := []dated{
		{1, "2024-01-02"}, {2, "2024-01-03"}, {3, "2024-01-02"}, {4, "2024-01-01"}, {5, "2024-01-03"},
	}
	once := SortByRecency(in, dateOf)
	twice := SortByRecency(once, dateOf)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("sort is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestSortByRecency_Empty(t *testing.T) {
	got := SortByRecency([]dated(nil), dateOf)
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
