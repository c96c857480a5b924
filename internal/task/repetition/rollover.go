package repetition

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

const week = 7 * 24 * time.Hour

// NextWeekly returns the first instant after now that falls on due's weekday and
// time of day. The step is taken from due itself, so it never drifts.
func NextWeekly(now, due time.Time) time.Time {
	return nextGap(now, due, week)
}

// NextMonthly returns the first instant after now carrying due's day of month and
// time of day, in due's zone.
//
// Months without that day (Jan 31 -> February) are skipped rather than clamped,
// so a task anchored on the 31st only fires in 31-day months.
func NextMonthly(now, due time.Time) time.Time {
	loc := due.Location()
	ref := now.In(loc)
	day := due.Day()
	h, m, s := due.Clock()
	ns := due.Nanosecond()

	// Terminates within a few iterations: every day 1..31 exists at least once
	// in any window of three consecutive months.
	for i := 0; ; i++ {
		c := time.Date(ref.Year(), ref.Month()+time.Month(i), day, h, m, s, ns, loc)
		if c.Day() != day {
			continue
		}
		if c.After(now) {
			return c
		}
	}
}

// NextYearly returns due moved to a later year, keeping month, day and time of
// day. Normally that is year+1; on catch-up the year keeps moving until the date
// is after now. A Feb 29 due date only lands on years that have a Feb 29.
func NextYearly(now, due time.Time) time.Time {
	loc := due.Location()
	month, day := due.Month(), due.Day()
	h, m, s := due.Clock()
	ns := due.Nanosecond()
	leapDay := month == time.February && day == 29

	y := due.Year() + 1
	if ny := now.In(loc).Year(); ny > y {
		y = ny
	}
	for {
		if leapDay && !isLeap(y) {
			y++
			continue
		}
		c := time.Date(y, month, day, h, m, s, ns, loc)
		if c.After(now) {
			return c
		}
		y++
	}
}

// NextConstantGap returns the smallest origin + k*gap (k >= 0) strictly after
// now. It is computed directly, without stepping.
func NextConstantGap(now, origin time.Time, gap time.Duration) (time.Time, error) {
	if gap <= 0 {
		return time.Time{}, fmt.Errorf("%w (got %s)", ErrInvalidGap, gap)
	}
	return nextGap(now, origin, gap), nil
}

// nextGap is now + (gap - ((now - origin) mod gap)). gap must be > 0.
func nextGap(now, origin time.Time, gap time.Duration) time.Time {
	if origin.After(now) {
		return origin
	}
	elapsed := now.Sub(origin)
	if elapsed < time.Duration(math.MaxInt64) {
		return now.Add(gap - elapsed%gap)
	}

	// now-origin saturated a Duration (~292 years); redo the modulo exactly.
	total := new(big.Int).Sub(big.NewInt(now.Unix()), big.NewInt(origin.Unix()))
	total.Mul(total, big.NewInt(int64(time.Second)))
	total.Add(total, big.NewInt(int64(now.Nanosecond()-origin.Nanosecond())))
	rem := new(big.Int).Mod(total, big.NewInt(int64(gap)))
	return now.Add(gap - time.Duration(rem.Int64()))
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
