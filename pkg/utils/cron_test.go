package utils

import (
	"testing"
	"time"
)

func TestValidateCron(t *testing.T) {
	valid := []string{"0 9 * * 1", "*/5 * * * *", "30 18 1 * *"}
	for _, expr := range valid {
		if err := ValidateCron(expr); err != nil {
			t.Errorf("ValidateCron(%q) = %v, want nil", expr, err)
		}
	}

	invalid := []string{"", "not a cron", "61 9 * * 1", "0 9 * *", "0 9 * * 1 2"}
	for _, expr := range invalid {
		if err := ValidateCron(expr); err == nil {
			t.Errorf("ValidateCron(%q) = nil, want error", expr)
		}
	}
}

func TestValidateCronRejectsDescriptors(t *testing.T) {
	for _, expr := range []string{"@daily", "@every 1h", "@hourly", "  @weekly"} {
		if err := ValidateCron(expr); err == nil {
			t.Errorf("ValidateCron(%q) = nil, want error", expr)
		}
		if _, err := NextRun(expr, time.Now(), time.UTC); err == nil {
			t.Errorf("NextRun(%q) = nil error, want error", expr)
		}
	}
}

func TestNextRun_MondayMorning(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}

	// Sunday 2025-06-01 12:00 UTC; "0 9 * * 1" must land on Monday
	// 09:00 Berlin time, i.e. 07:00 UTC during DST.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next, err := NextRun("0 9 * * 1", now, loc)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}

	want := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
	if next.Location() != time.UTC {
		t.Errorf("next not normalized to UTC: %v", next.Location())
	}
}

func TestNextRun_IndependentOfNowZone(t *testing.T) {
	loc := time.UTC
	instant := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)
	inOther := instant.In(time.FixedZone("X", -7*3600))

	a, err := NextRun("15 10 * * *", instant, loc)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NextRun("15 10 * * *", inOther, loc)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Errorf("same instant produced different next runs: %v vs %v", a, b)
	}
}

func TestNextRun_StrictlyAfterNow(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC) // Monday 09:00
	next, err := NextRun("0 9 * * 1", now, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if !next.After(now) {
		t.Errorf("next = %v, want strictly after %v", next, now)
	}
}

func TestNextRun_InvalidExpr(t *testing.T) {
	if _, err := NextRun("bogus", time.Now(), time.UTC); err == nil {
		t.Error("expected error for invalid expression")
	}
}
