package timeofday

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9am", "09:00"},
		{"12am", "00:00"},
		{"12pm", "12:00"},
		{"14:30", "14:30"},
		{"7", "07:00"},
		{"garbage", "00:00"},
		{"", "00:00"},
		{"07", "07:00"},
		{"9:05", "09:05"},
		{" 2:15 PM ", "14:15"},
		{"11:59pm", "23:59"},
		{"12:30am", "00:30"},
		{"12:45 pm", "12:45"},
		{"9 a.m.", "09:00"},
		{"10:00:00", "10:00"},
		{"23:59", "23:59"},
		{"24:00", "00:00"},
		{"13pm", "00:00"},
		{"0am", "00:00"},
		{"1:5", "00:00"},
		{"10:60", "00:00"},
		{"+7", "00:00"},
		{"9:30 xm", "00:00"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"6pm", "18:00", true},
		{"00:00", "00:00", true},
		{"12am", "00:00", true},
		{"TBD", "00:00", false},
		{"", "00:00", false},
	}
	for _, tc := range tests {
		got, ok := Parse(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("Parse(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestCompose(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	got, err := Compose("2026-03-15", "2:15pm", loc)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	want := time.Date(2026, 3, 15, 14, 15, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got, err = Compose("2026-03-15", "  ", loc)
	if err != nil {
		t.Fatalf("compose with blank time: %v", err)
	}
	if !got.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected midnight for blank time, got %v", got)
	}

	for _, raw := range []string{"not a time", "TBD", "noon-ish", "25:00"} {
		if _, err := Compose("2026-03-15", raw, loc); !errors.Is(err, ErrUnreadableClock) {
			t.Fatalf("Compose(%q): expected ErrUnreadableClock, got %v", raw, err)
		}
	}

	if _, err := Compose("15/03/2026", "10:00", loc); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestEndOfDay(t *testing.T) {
	got, err := EndOfDay("2026-03-15", time.UTC)
	if err != nil {
		t.Fatalf("end of day: %v", err)
	}
	want := time.Date(2026, 3, 15, 23, 59, 59, 999_000_000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if _, err := EndOfDay("", time.UTC); err == nil {
		t.Fatal("expected error for empty date")
	}
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	now := time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC)
	if got := Today(now, loc); got != "2026-03-16" {
		t.Fatalf("expected next civil day in UTC+10, got %s", got)
	}
}

func TestValidDate(t *testing.T) {
	if !ValidDate("2026-02-28") {
		t.Fatal("expected valid date")
	}
	for _, s := range []string{"", "2026-02-30", "2026/02/28", "tomorrow"} {
		if ValidDate(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}
