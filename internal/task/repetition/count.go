package repetition

import "strconv"

// Count is the occurrence budget of a recurring rule.
//
// The zero value is Infinite. Finite(0) is terminal: consuming it keeps it at 0
// and reports exhaustion again.
type Count struct {
	finite    bool
	remaining uint64
}

// Infinite returns a budget that is never exhausted.
func Infinite() Count { return Count{} }

// Finite returns a budget of n occurrences.
func Finite(n uint64) Count { return Count{finite: true, remaining: n} }

func (c Count) IsInfinite() bool { return !c.finite }

// Remaining returns the number of occurrences left. ok is false for Infinite.
func (c Count) Remaining() (n uint64, ok bool) {
	if !c.finite {
		return 0, false
	}
	return c.remaining, true
}

// Consume uses one occurrence and reports whether the budget is now exhausted.
func (c *Count) Consume() (exhausted bool) {
	if !c.finite {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining == 0
}

func (c Count) String() string {
	if !c.finite {
		return "infinite"
	}
	return strconv.FormatUint(c.remaining, 10)
}
