package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
//   - "*/5 * * * *"  every 5 minutes
//   - "0 * * * *"    every hour
//   - "30 2 * * *"   every day at 02:30
//   - "0 6 * * 1-5"  weekdays at 06:00
type CronExpression struct {
	raw      string
	minutes  fieldSet // 0-59
	hours    fieldSet // 0-23
	days     fieldSet // 1-31
	months   fieldSet // 1-12
	weekdays fieldSet // 0-6, 0 = Sunday
}

type fieldSet map[int]struct{}

func (f fieldSet) has(v int) bool {
	_, ok := f[v]
	return ok
}

// Common cron expression presets.
const (
	EveryMinute    = "* * * * *"
	Every5Minutes  = "*/5 * * * *"
	Every15Minutes = "*/15 * * * *"
	EveryHour      = "0 * * * *"
	EveryDay3AM    = "0 3 * * *"
)

// ParseCronExpression parses a cron expression string.
// Each field accepts *, n, n-m, */s, n-m/s and comma-separated lists of those.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	bounds := [5]struct {
		name     string
		min, max int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day", 1, 31},
		{"month", 1, 12},
		{"weekday", 0, 6},
	}

	var sets [5]fieldSet
	for i, field := range fields {
		set, err := parseField(field, bounds[i].min, bounds[i].max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", bounds[i].name, err)
		}
		sets[i] = set
	}

	return &CronExpression{
		raw:      expr,
		minutes:  sets[0],
		hours:    sets[1],
		days:     sets[2],
		months:   sets[3],
		weekdays: sets[4],
	}, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

func parseField(field string, min, max int) (fieldSet, error) {
	set := make(fieldSet)
	for _, part := range strings.Split(field, ",") {
		if err := parsePart(set, part, min, max); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func parsePart(set fieldSet, part string, min, max int) error {
	step := 1
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step %q", s)
		}
		step = n
		part = base
	}

	start, end := min, max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return fmt.Errorf("invalid range start %q", lo)
		}
		if end, err = strconv.Atoi(hi); err != nil {
			return fmt.Errorf("invalid range end %q", hi)
		}
		if start > end {
			return fmt.Errorf("inverted range %q", part)
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid value %q", part)
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	if start < min || end > max {
		return fmt.Errorf("value out of range [%d-%d]: %q", min, max, part)
	}
	for v := start; v <= end; v += step {
		set[v] = struct{}{}
	}
	return nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time, or
// the zero time when nothing matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return ce.minutes.has(t.Minute()) &&
		ce.hours.has(t.Hour()) &&
		ce.days.has(t.Day()) &&
		ce.months.has(int(t.Month())) &&
		ce.weekdays.has(int(t.Weekday()))
}

// ParseSchedule accepts either "@every <duration>" or a cron expression.
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", rest, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("interval must be positive: %q", rest)
		}
		return Every(d), nil
	}

	ce, err := ParseCronExpression(spec)
	if err != nil {
		return nil, err
	}
	return ce, nil
}
