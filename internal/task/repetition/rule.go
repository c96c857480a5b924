package repetition

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidGap is returned for a constant-gap rule whose gap is not strictly positive.
	ErrInvalidGap = errors.New("repetition gap must be > 0")
	// ErrUnknownKind is returned for a Rule whose Kind is outside the closed set.
	ErrUnknownKind = errors.New("unknown repetition kind")
)

// Kind enumerates the repetition variants.
type Kind uint8

const (
	KindOnce Kind = iota
	KindWeekly
	KindMonthly
	KindYearly
	KindConstantGap
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindOnce:
		return "once"
	case KindWeekly:
		return "weekly"
	case KindMonthly:
		return "monthly"
	case KindYearly:
		return "yearly"
	case KindConstantGap:
		return "every"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Rule describes how a task's due date advances after it fires.
//
// Count is meaningful for the weekly, monthly, yearly and constant-gap kinds.
// Gap is meaningful for the constant-gap kind only.
// The zero value is Once.
type Rule struct {
	Kind  Kind
	Count Count
	Gap   time.Duration
}

func Once() Rule           { return Rule{Kind: KindOnce} }
func Weekly(c Count) Rule  { return Rule{Kind: KindWeekly, Count: c} }
func Monthly(c Count) Rule { return Rule{Kind: KindMonthly, Count: c} }
func Yearly(c Count) Rule  { return Rule{Kind: KindYearly, Count: c} }
func Custom() Rule         { return Rule{Kind: KindCustom} }
func ConstantGap(gap time.Duration, c Count) Rule {
	return Rule{Kind: KindConstantGap, Gap: gap, Count: c}
}

// Counted reports whether the kind consumes a Count when it fires.
func (r Rule) Counted() bool {
	switch r.Kind {
	case KindWeekly, KindMonthly, KindYearly, KindConstantGap:
		return true
	default:
		return false
	}
}

// Validate rejects rules that can never be rolled over.
func (r Rule) Validate() error {
	switch r.Kind {
	case KindOnce, KindWeekly, KindMonthly, KindYearly, KindCustom:
		return nil
	case KindConstantGap:
		if r.Gap <= 0 {
			return fmt.Errorf("%w (got %s)", ErrInvalidGap, r.Gap)
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(r.Kind))
	}
}

// String renders the rule in the textual form accepted by ParseRule.
func (r Rule) String() string {
	base := r.Kind.String()
	if r.Kind == KindConstantGap {
		base = "every " + r.Gap.String()
	}
	if !r.Counted() {
		return base
	}
	if n, ok := r.Count.Remaining(); ok {
		return fmt.Sprintf("%s x%d", base, n)
	}
	return base
}
