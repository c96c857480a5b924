package repetition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JSON form (externally tagged variants):
//
//	Count: "Infinite" | {"Finite": 3}
//	Rule:  "Once" | "Custom" | {"Weekly": <count>} | {"Monthly": <count>} | {"Yearly": <count>}
//	       | {"ConstantGap": {"gap": 3600, "count": <count>}}
//
// The gap is a number of whole seconds. Gaps with a sub-second part are written
// as Go duration strings ("1.5s"); both forms are accepted on decode.

const (
	tagInfinite    = "Infinite"
	tagFinite      = "Finite"
	tagOnce        = "Once"
	tagCustom      = "Custom"
	tagWeekly      = "Weekly"
	tagMonthly     = "Monthly"
	tagYearly      = "Yearly"
	tagConstantGap = "ConstantGap"
)

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.finite {
		return json.Marshal(tagInfinite)
	}
	return json.Marshal(map[string]uint64{tagFinite: c.remaining})
}

func (c *Count) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err == nil {
		if tag != tagInfinite {
			return fmt.Errorf("repetition count: unknown variant %q", tag)
		}
		*c = Infinite()
		return nil
	}
	var m map[string]uint64
	if err := strictDecode(b, &m); err != nil {
		return fmt.Errorf("repetition count: %w", err)
	}
	n, ok := m[tagFinite]
	if !ok || len(m) != 1 {
		return fmt.Errorf("repetition count: expected {%q: n}", tagFinite)
	}
	*c = Finite(n)
	return nil
}

type gapBody struct {
	Gap   json.RawMessage `json:"gap"`
	Count Count           `json:"count"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindOnce:
		return json.Marshal(tagOnce)
	case KindCustom:
		return json.Marshal(tagCustom)
	case KindWeekly:
		return json.Marshal(map[string]Count{tagWeekly: r.Count})
	case KindMonthly:
		return json.Marshal(map[string]Count{tagMonthly: r.Count})
	case KindYearly:
		return json.Marshal(map[string]Count{tagYearly: r.Count})
	case KindConstantGap:
		gap, err := encodeGap(r.Gap)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]gapBody{tagConstantGap: {Gap: gap, Count: r.Count}})
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(r.Kind))
	}
}

func (r *Rule) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err == nil {
		switch tag {
		case tagOnce:
			*r = Once()
		case tagCustom:
			*r = Custom()
		default:
			return fmt.Errorf("repetition rule: unknown unit variant %q", tag)
		}
		return nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("repetition rule: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("repetition rule: expected exactly one variant, got %d", len(m))
	}
	for tag, body := range m {
		switch tag {
		case tagWeekly, tagMonthly, tagYearly:
			var c Count
			if err := json.Unmarshal(body, &c); err != nil {
				return fmt.Errorf("repetition rule %s: %w", tag, err)
			}
			switch tag {
			case tagWeekly:
				*r = Weekly(c)
			case tagMonthly:
				*r = Monthly(c)
			default:
				*r = Yearly(c)
			}
		case tagConstantGap:
			var g gapBody
			if err := strictDecode(body, &g); err != nil {
				return fmt.Errorf("repetition rule %s: %w", tag, err)
			}
			gap, err := decodeGap(g.Gap)
			if err != nil {
				return fmt.Errorf("repetition rule %s: %w", tag, err)
			}
			*r = ConstantGap(gap, g.Count)
		default:
			return fmt.Errorf("repetition rule: unknown variant %q", tag)
		}
	}
	return nil
}

func encodeGap(d time.Duration) (json.RawMessage, error) {
	if d%time.Second == 0 {
		return json.Marshal(int64(d / time.Second))
	}
	return json.Marshal(d.String())
}

func decodeGap(raw json.RawMessage) (time.Duration, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("gap required")
	}
	var secs int64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("gap must be seconds or a duration string")
	}
	return time.ParseDuration(s)
}

func strictDecode(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
