// Package logx is the planner's structured logging on top of zerolog.
//
// A Service owns the process sinks: a readable console, a JSON file, and an
// optional rate-limited alert copy on stderr. Loggers taken from it follow
// Service.Apply. NewConsole serves short-lived commands that need no Service.
package logx
