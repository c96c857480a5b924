package sleep

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JSON form: "Native" | {"HighPrecision": {"native_accuracy_ns": 1000000, "spin_strategy": 0}}.
// spin_strategy is 0 for yield and 1 for hint.

type precisionBody struct {
	NativeAccuracyNS int64 `json:"native_accuracy_ns"`
	SpinStrategy     uint8 `json:"spin_strategy"`
}

func (s Strategy) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindNative:
		return json.Marshal("Native")
	case KindHighPrecision:
		return json.Marshal(map[string]precisionBody{
			"HighPrecision": {
				NativeAccuracyNS: int64(s.Precision.NativeAccuracy),
				SpinStrategy:     uint8(s.Precision.Spin),
			},
		})
	default:
		return nil, fmt.Errorf("unknown sleep kind %d", uint8(s.Kind))
	}
}

func (s *Strategy) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err == nil {
		if tag != "Native" {
			return fmt.Errorf("sleep strategy: unknown variant %q", tag)
		}
		*s = Native()
		return nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("sleep strategy: %w", err)
	}
	body, ok := m["HighPrecision"]
	if !ok || len(m) != 1 {
		return fmt.Errorf("sleep strategy: expected \"Native\" or {\"HighPrecision\": {...}}")
	}
	var p precisionBody
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("sleep strategy HighPrecision: %w", err)
	}
	if p.SpinStrategy > uint8(SpinHint) {
		return fmt.Errorf("sleep strategy HighPrecision: unknown spin_strategy %d", p.SpinStrategy)
	}
	*s = HighPrecision(Precision{
		NativeAccuracy: time.Duration(p.NativeAccuracyNS),
		Spin:           SpinMode(p.SpinStrategy),
	})
	return nil
}

// Parse accepts "native" (or empty) and "precise"/"high_precision".
func Parse(raw string, p Precision) (Strategy, error) {
	switch raw {
	case "", "native":
		return Native(), nil
	case "precise", "high_precision", "spin":
		return HighPrecision(p), nil
	default:
		return Strategy{}, fmt.Errorf("unknown sleep strategy %q (use native or precise)", raw)
	}
}
