package schedule

import "testing"

func TestParseSpecDaily(t *testing.T) {
	t.Parallel()

	spec, err := ParseSpec("09:30", "daily", nil)
	if err != nil {
		t.Fatalf("ParseSpec() error = %v", err)
	}
	expr, ok := spec.CronExpr()
	if !ok || expr != "30 9 * * *" {
		t.Fatalf("CronExpr() = (%q, %v), want (30 9 * * *, true)", expr, ok)
	}
}

func TestParseSpecWeekdays(t *testing.T) {
	t.Parallel()

	// 0 = Monday internally, cron counts Sunday as 0.
	spec, err := ParseSpec("09:00", "weekdays", []int{0, 2, 4})
	if err != nil {
		t.Fatalf("ParseSpec() error = %v", err)
	}
	expr, ok := spec.CronExpr()
	if !ok || expr != "0 9 * * 1,3,5" {
		t.Fatalf("CronExpr() = (%q, %v), want (0 9 * * 1,3,5, true)", expr, ok)
	}
}

func TestParseSpecSundayWrapsToZero(t *testing.T) {
	t.Parallel()

	spec, err := ParseSpec("08:00", "weekdays", []int{6})
	if err != nil {
		t.Fatalf("ParseSpec() error = %v", err)
	}
	expr, ok := spec.CronExpr()
	if !ok || expr != "0 8 * * 0" {
		t.Fatalf("CronExpr() = (%q, %v), want (0 8 * * 0, true)", expr, ok)
	}
}

func TestParseSpecEmptyDaySetNeverFires(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{"weekdays", "monthly"} {
		spec, err := ParseSpec("10:00", mode, nil)
		if err != nil {
			t.Fatalf("ParseSpec(%s) error = %v", mode, err)
		}
		if expr, ok := spec.CronExpr(); ok {
			t.Fatalf("CronExpr(%s, empty days) = (%q, true), want no trigger", mode, expr)
		}
	}
}

func TestParseSpecMonthly(t *testing.T) {
	t.Parallel()

	spec, err := ParseSpec("00:05", "monthly", []int{15, 1, 1})
	if err != nil {
		t.Fatalf("ParseSpec() error = %v", err)
	}
	expr, ok := spec.CronExpr()
	if !ok || expr != "5 0 1,15 * *" {
		t.Fatalf("CronExpr() = (%q, %v), want (5 0 1,15 * *, true)", expr, ok)
	}
}

func TestParseSpecRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		timeOfDay string
		mode      string
		days      []int
	}{
		{"bad time", "25:00", "daily", nil},
		{"no colon", "0900", "daily", nil},
		{"bad minute", "09:75", "daily", nil},
		{"weekday out of range", "09:00", "weekdays", []int{7}},
		{"negative weekday", "09:00", "weekdays", []int{-1}},
		{"month day zero", "09:00", "monthly", []int{0}},
		{"month day 32", "09:00", "monthly", []int{32}},
		{"unknown mode", "09:00", "hourly", nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseSpec(tc.timeOfDay, tc.mode, tc.days); err == nil {
				t.Fatalf("ParseSpec(%q, %q, %v) error = nil, want error", tc.timeOfDay, tc.mode, tc.days)
			}
		})
	}
}
