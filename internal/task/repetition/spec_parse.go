package repetition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseRule parses the textual form of a Rule.
//
// Supported forms:
//   - "once"
//   - "weekly", "monthly", "yearly", each optionally followed by a count: "weekly x3", "yearly x 2"
//   - "every <interval>": Go duration ("every 90m", "every 2h30m") or HH:MM ("every 02:30")
//   - "every <interval> x<count>"
//   - "custom" (the lane or scheduler must provide a Handler)
//
// Without a count the rule repeats forever.
func ParseRule(raw string) (Rule, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Rule{}, fmt.Errorf("repeat rule required")
	}
	fields, count, err := splitCount(strings.Fields(s))
	if err != nil {
		return Rule{}, fmt.Errorf("invalid repeat rule %q: %w", raw, err)
	}
	if len(fields) == 0 {
		return Rule{}, fmt.Errorf("invalid repeat rule %q", raw)
	}

	switch fields[0] {
	case "once":
		if len(fields) != 1 || !count.IsInfinite() {
			return Rule{}, fmt.Errorf("invalid repeat rule %q: once takes no arguments", raw)
		}
		return Once(), nil
	case "custom":
		if len(fields) != 1 || !count.IsInfinite() {
			return Rule{}, fmt.Errorf("invalid repeat rule %q: custom takes no arguments", raw)
		}
		return Custom(), nil
	case "weekly", "monthly", "yearly":
		if len(fields) != 1 {
			return Rule{}, fmt.Errorf("invalid repeat rule %q", raw)
		}
		switch fields[0] {
		case "weekly":
			return Weekly(count), nil
		case "monthly":
			return Monthly(count), nil
		default:
			return Yearly(count), nil
		}
	case "every":
		if len(fields) != 2 {
			return Rule{}, fmt.Errorf("invalid repeat rule %q (use 'every 90m' or 'every 02:30')", raw)
		}
		gap, err := parseInterval(fields[1])
		if err != nil {
			return Rule{}, err
		}
		return ConstantGap(gap, count), nil
	}

	return Rule{}, fmt.Errorf(
		"invalid repeat rule %q (use once, weekly, monthly, yearly, custom or 'every 55m', optionally with a count like 'x3')",
		raw,
	)
}

// splitCount strips a trailing "xN" or "x N" from fields.
func splitCount(fields []string) ([]string, Count, error) {
	n := len(fields)
	var digits string
	switch {
	case n >= 2 && fields[n-2] == "x":
		digits = fields[n-1]
		fields = fields[:n-2]
	case n >= 2 && len(fields[n-1]) > 1 && fields[n-1][0] == 'x':
		digits = fields[n-1][1:]
		fields = fields[:n-1]
	default:
		return fields, Infinite(), nil
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return nil, Count{}, fmt.Errorf("invalid count %q", digits)
	}
	if v == 0 {
		return nil, Count{}, fmt.Errorf("count must be > 0")
	}
	return fields, Finite(v), nil
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		return parseHHMMDuration(v)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '55m'/'2h30m')", v)
	}
	if d <= 0 {
		return 0, ErrInvalidGap
	}
	return d, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	// safe parse: hours up to 999, minutes 0..59
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, ErrInvalidGap
	}
	return d, nil
}
