package domain

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Minute
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: " 23:59 ", want: 1439},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:01", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "0930", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClock(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMinuteString(t *testing.T) {
	if got := Minute(570).String(); got != "09:30" {
		t.Fatalf("String = %q, want %q", got, "09:30")
	}
	if got := Minute(MinutesPerDay).String(); got != "24:00" {
		t.Fatalf("String = %q, want %q", got, "24:00")
	}
}

func TestParseDateAndDayOfWeek(t *testing.T) {
	d, err := ParseDate("2025-12-25")
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if d.Location() != time.UTC || d.Hour() != 0 {
		t.Fatalf("date = %v, want midnight UTC", d)
	}
	if got := DayOfWeek(d); got != 4 {
		t.Fatalf("DayOfWeek = %d, want 4 (Thursday)", got)
	}
	if FormatDate(d) != "2025-12-25" {
		t.Fatalf("FormatDate = %q", FormatDate(d))
	}

	if _, err := ParseDate("25/12/2025"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestDateOfAndMinuteOfUseLocalClock(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	now := time.Date(2026, 3, 2, 22, 15, 30, 0, loc)

	if got := DateOf(now); FormatDate(got) != "2026-03-02" {
		t.Fatalf("DateOf = %s, want 2026-03-02", FormatDate(got))
	}
	if got := MinuteOf(now); got != 22*60+16 {
		t.Fatalf("MinuteOf = %s, want 22:16", got)
	}
	if got := MinuteOf(time.Date(2026, 3, 2, 8, 0, 0, 0, loc)); got != 480 {
		t.Fatalf("MinuteOf = %s, want 08:00", got)
	}
}
