package config

import (
	logx "planner/pkg/logx"
)

// Config is the planner file. JSON or YAML, decoded strictly.
//
// Example (YAML):
//
//	scheduler:
//	  timezone: Europe/Berlin
//	lanes:
//	  reports:
//	    tasks:
//	      - name: weekly-report
//	        command: ["/usr/local/bin/report", "--weekly"]
//	        due: "2026-10-19 09:00"
//	        repeat: weekly
type Config struct {
	Logging   LoggingConfig         `json:"logging"`
	Storage   *StorageConfig        `json:"storage,omitempty"`
	Scheduler SchedulerConfig       `json:"scheduler"`
	Lanes     map[string]LaneConfig `json:"lanes"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert copies warn+ records (configurable) to stderr as one short line.
type LoggingAlert struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// Logx maps the section onto the logging service config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Alert: logx.AlertConfig{
			Enabled:    c.Alert.Enabled,
			MinLevel:   c.Alert.MinLevel,
			RatePerSec: c.Alert.RatePerSec,
		},
	}
}

// StorageConfig controls the fire journal and the final state snapshot.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./planner.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// StateName keys the snapshot saved when a run ends. Default "default".
	StateName string `json:"state_name,omitempty"`
}

// SchedulerConfig holds settings shared by every lane.
//
// Durations are Go duration strings.
type SchedulerConfig struct {
	// Timezone used for due dates written without an offset. Default: local.
	Timezone string `json:"timezone,omitempty"`

	// MaxFiresPerSec caps job starts per lane. 0 disables the cap.
	MaxFiresPerSec float64 `json:"max_fires_per_sec,omitempty"`
	Burst          int     `json:"burst,omitempty"`

	// HighPrecisionAccuracy and Spin tune tasks with sleep "precise".
	HighPrecisionAccuracy string `json:"high_precision_accuracy,omitempty"`
	Spin                  string `json:"spin,omitempty"` // "yield" (default) or "hint"
}

// LaneConfig is one lane. Cron, when set, drives the lane's "custom" tasks.
type LaneConfig struct {
	Cron  string       `json:"cron,omitempty"`
	Tasks []TaskConfig `json:"tasks"`
}

// TaskConfig is one scheduled job.
//
// Due accepts RFC 3339, "2006-01-02 15:04[:05]" in the scheduler timezone,
// "HH:MM" (next occurrence), "now" (the next whole second) or "+<duration>".
// Repeat accepts the rule syntax of repetition.ParseRule; empty means once.
type TaskConfig struct {
	Name    string   `json:"name"`
	Message string   `json:"message,omitempty"`
	Command []string `json:"command,omitempty"`
	Timeout string   `json:"timeout,omitempty"`
	Due     string   `json:"due"`
	Repeat  string   `json:"repeat,omitempty"`
	Sleep   string   `json:"sleep,omitempty"`
}
