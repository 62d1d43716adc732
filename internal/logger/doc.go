// Package logger wraps zap to offer:
//   - a global sugared console logger writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - convenience functions (InfoKV, WarnKV, ErrorKV, etc.).
//
// Every pipeline stage receives a context and extracts the logger from it, so a
// run ID attached once at the start of a run shows up on every line.
package logger
