package scheduler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"planner/internal/task/lane"
)

// Format names a persisted representation.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension; JSON is the default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Snapshot is the persisted form of a Scheduler.
type Snapshot[P any] struct {
	Lanes   map[string][]lane.Task[P] `json:"lanes"`
	History map[string][]lane.Task[P] `json:"history"`
}

// Snapshot returns a deep copy of the Scheduler's state.
func (s *Scheduler[P]) Snapshot() Snapshot[P] {
	return Snapshot[P]{Lanes: copyMap(s.lanes), History: copyMap(s.history)}
}

// Encode serializes the Scheduler's lanes and history.
func Encode[P any](format Format, s *Scheduler[P]) ([]byte, error) {
	jb, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode scheduler: %w", err)
	}
	switch format {
	case FormatJSON, "":
		return jb, nil
	case FormatYAML:
		var v any
		dec := json.NewDecoder(bytes.NewReader(jb))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("encode scheduler: %w", err)
		}
		out, err := yaml.Marshal(integralNumbers(v))
		if err != nil {
			return nil, fmt.Errorf("encode scheduler: json->yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Decode parses a persisted Scheduler and builds it with opts. History entries
// missing for a lane are recreated.
func Decode[P any](format Format, data []byte, opts ...Option) (*Scheduler[P], error) {
	jb := data
	switch format {
	case FormatJSON, "":
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode scheduler: yaml unmarshal: %w", err)
		}
		b, err := json.Marshal(normalizeYAML(v))
		if err != nil {
			return nil, fmt.Errorf("decode scheduler: yaml->json: %w", err)
		}
		jb = b
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	var snap Snapshot[P]
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode scheduler: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("decode scheduler: trailing data")
	}
	return New(snap.Lanes, snap.History, opts...)
}

// normalizeYAML makes every map key a string so the value can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = normalizeYAML(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

// integralNumbers turns json.Number into int64 (or float64) so YAML does not
// write integers in exponent form.
func integralNumbers(in any) any {
	switch x := in.(type) {
	case map[string]any:
		for k, v := range x {
			x[k] = integralNumbers(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = integralNumbers(x[i])
		}
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return u
		}
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) {
			return x.String()
		}
		return f
	default:
		return in
	}
}
