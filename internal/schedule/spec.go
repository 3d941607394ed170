package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Recurrence is the repetition mode of a schedule.
type Recurrence string

const (
	// RecurrenceDaily fires every day.
	RecurrenceDaily Recurrence = "daily"
	// RecurrenceWeekdays fires on selected days of the week,
	// 0 = Monday through 6 = Sunday.
	RecurrenceWeekdays Recurrence = "weekdays"
	// RecurrenceMonthly fires on selected days of the month, 1 through 31.
	RecurrenceMonthly Recurrence = "monthly"
)

// RecurrenceSpec is a validated schedule: a time of day plus a
// repetition mode with its day selection.
type RecurrenceSpec struct {
	Hour   int
	Minute int
	Mode   Recurrence
	Days   []int
}

// ParseSpec validates raw schedule fields into a RecurrenceSpec.
// timeOfDay is "HH:MM". days is ignored for the daily mode. An empty
// day set is valid and compiles to no trigger.
func ParseSpec(timeOfDay, mode string, days []int) (RecurrenceSpec, error) {
	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return RecurrenceSpec{}, err
	}

	spec := RecurrenceSpec{Hour: hour, Minute: minute, Mode: Recurrence(mode)}
	switch spec.Mode {
	case RecurrenceDaily:
	case RecurrenceWeekdays:
		for _, d := range days {
			if d < 0 || d > 6 {
				return RecurrenceSpec{}, fmt.Errorf("weekday %d out of range 0..6", d)
			}
		}
		spec.Days = normalizeDays(days)
	case RecurrenceMonthly:
		for _, d := range days {
			if d < 1 || d > 31 {
				return RecurrenceSpec{}, fmt.Errorf("month day %d out of range 1..31", d)
			}
		}
		spec.Days = normalizeDays(days)
	default:
		return RecurrenceSpec{}, fmt.Errorf("unknown recurrence mode %q", mode)
	}
	return spec, nil
}

// CronExpr compiles the spec to a five-field cron expression. ok is
// false when the spec selects no days and therefore never fires.
func (s RecurrenceSpec) CronExpr() (string, bool) {
	switch s.Mode {
	case RecurrenceDaily:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour), true
	case RecurrenceWeekdays:
		if len(s.Days) == 0 {
			return "", false
		}
		// Internally 0 = Monday; cron counts 0 = Sunday.
		cronDays := make([]string, len(s.Days))
		for i, d := range s.Days {
			cronDays[i] = strconv.Itoa((d + 1) % 7)
		}
		return fmt.Sprintf("%d %d * * %s", s.Minute, s.Hour, strings.Join(cronDays, ",")), true
	case RecurrenceMonthly:
		if len(s.Days) == 0 {
			return "", false
		}
		cronDays := make([]string, len(s.Days))
		for i, d := range s.Days {
			cronDays[i] = strconv.Itoa(d)
		}
		return fmt.Sprintf("%d %d %s * *", s.Minute, s.Hour, strings.Join(cronDays, ",")), true
	default:
		return "", false
	}
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("time of day %q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time of day %q: hour out of range", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q: minute out of range", s)
	}
	return hour, minute, nil
}

// normalizeDays sorts and deduplicates the day selection so equal sets
// compile to equal cron expressions.
func normalizeDays(days []int) []int {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
