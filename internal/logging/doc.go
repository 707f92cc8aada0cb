// Package logging constructs the slog loggers used across the worker and
// provides attribute helpers so call sites stay terse.
//
// Two handler formats are supported: a console handler for interactive use
// and a JSON handler for log shipping. Component loggers carry a standard
// component attribute so a single job's output can be filtered per stage.
package logging
