// Package log provides the relay's structured logging facade.
//
// It is a thin wrapper over the standard library slog with a string-driven
// constructor, so callers configure level and format from config values
// without touching slog types. All output goes to stdout as text or JSON
// lines.
//
//	lg := log.New(log.ParseLevel("info"), "text")
//	lg = lg.With("component", "dispatch")
//	lg.Info("started", "rate", 500)
package log
