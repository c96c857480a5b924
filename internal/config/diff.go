package config

import (
	"reflect"
	"sort"
	"strings"

	logx "planner/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) the names of lanes that were
// added, removed or changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.alert_enabled", newCfg.Logging.Alert.Enabled),
		)
	}

	// Storage. Nil means disabled.
	oS, nS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nS.Driver),
			logx.Bool("storage.path_set", nS.Path != ""),
			logx.String("storage.busy_timeout", nS.BusyTimeout),
		)
	}

	// Scheduler
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.Float64("scheduler.max_fires_per_sec", newCfg.Scheduler.MaxFiresPerSec),
			logx.String("scheduler.spin", newCfg.Scheduler.Spin),
		)
	}

	// Lanes (summarize only)
	laneChanged := diffLanes(oldCfg.Lanes, newCfg.Lanes)
	if len(laneChanged) > 0 {
		changed = append(changed, "lanes")
		attrs = append(attrs,
			logx.Int("lanes.changed_count", len(laneChanged)),
			logx.Int("lanes.task_count", countTasks(newCfg.Lanes)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, laneChanged
}

func derefStorage(sc *StorageConfig) StorageConfig {
	if sc == nil {
		return StorageConfig{}
	}
	return StorageConfig{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: strings.TrimSpace(sc.BusyTimeout),
		StateName:   strings.TrimSpace(sc.StateName),
	}
}

func countTasks(m map[string]LaneConfig) int {
	n := 0
	for _, lc := range m {
		n += len(lc.Tasks)
	}
	return n
}

func diffLanes(oldM, newM map[string]LaneConfig) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, oOK := oldM[name]
		n, nOK := newM[name]
		if oOK != nOK || !reflect.DeepEqual(o, n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
