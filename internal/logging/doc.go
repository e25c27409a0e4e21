// Package logging wraps log/slog with the handlers and attribute helpers
// used across revoice. The console handler renders one line per record with
// the component name folded into a prefix; the JSON handler is intended for
// piping into log collectors.
package logging
