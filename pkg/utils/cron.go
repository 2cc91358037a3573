package utils

import (
	"fmt"
	"strings"
	"time"

	cronparse "github.com/robfig/cron/v3"
)

// ValidateCron checks that expr is a valid 5-field cron expression.
func ValidateCron(expr string) error {
	_, err := parseCron(expr)
	return err
}

// NextRun evaluates expr against now interpreted in loc and returns the
// next occurrence as a UTC instant. The zone is passed explicitly so the
// result never depends on the process-wide timezone.
func NextRun(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	sched, err := parseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.In(loc)).UTC(), nil
}

// parseCron accepts only the 5-field form. The parser's @daily and
// @every descriptors are rejected so stored expressions stay uniform.
func parseCron(expr string) (cronparse.Schedule, error) {
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, "@") {
		return nil, fmt.Errorf("cron descriptors are not supported: %q", expr)
	}
	if len(strings.Fields(trimmed)) != 5 {
		return nil, fmt.Errorf("expected 5 cron fields: %q", expr)
	}
	return cronparse.ParseStandard(trimmed)
}
