// Package sleep implements the ways a lane waits for a task's due instant.
//
// Native blocks on a runtime timer: it costs nothing while waiting and is
// accurate to roughly a second under load. HighPrecision sleeps natively for
// most of the wait, then spins for the last stretch to hit the instant within
// microseconds, at the price of a busy CPU during the spin.
package sleep

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

type Kind uint8

const (
	KindNative Kind = iota
	KindHighPrecision
)

// SpinMode selects what the spin phase does between clock checks.
type SpinMode uint8

const (
	// SpinYield hands the processor back to the scheduler on every iteration.
	SpinYield SpinMode = iota
	// SpinHint busy-loops without yielding.
	SpinHint
)

const defaultNativeAccuracy = time.Millisecond

// Precision configures HighPrecision.
type Precision struct {
	// NativeAccuracy is how early the native timer wakes up before spinning.
	// Zero means the default (1ms).
	NativeAccuracy time.Duration
	Spin           SpinMode
}

// Strategy is a sleep mechanism. The zero value is Native.
type Strategy struct {
	Kind      Kind
	Precision Precision
}

func Native() Strategy { return Strategy{Kind: KindNative} }

func HighPrecision(p Precision) Strategy {
	return Strategy{Kind: KindHighPrecision, Precision: p}
}

func (s Strategy) String() string {
	switch s.Kind {
	case KindNative:
		return "native"
	case KindHighPrecision:
		return "precise"
	default:
		return fmt.Sprintf("sleep(%d)", uint8(s.Kind))
	}
}

// Sleep blocks until d has elapsed or ctx is done.
func (s Strategy) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if s.Kind != KindHighPrecision {
		return nativeSleep(ctx, d)
	}

	deadline := time.Now().Add(d)
	acc := s.Precision.NativeAccuracy
	if acc <= 0 {
		acc = defaultNativeAccuracy
	}
	if coarse := d - acc; coarse > 0 {
		if err := nativeSleep(ctx, coarse); err != nil {
			return err
		}
	}
	return spinUntil(ctx, deadline, s.Precision.Spin)
}

func nativeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func spinUntil(ctx context.Context, deadline time.Time, mode SpinMode) error {
	for i := 0; time.Now().Before(deadline); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if mode == SpinYield {
			runtime.Gosched()
		}
	}
	return nil
}
