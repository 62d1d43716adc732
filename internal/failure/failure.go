package failure

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Code is a stable error code printed to the operator.
type Code string

// Error codes. Each code maps to one failure class of a release run.
const (
	// EConfig is a missing or invalid configuration value. Not retryable.
	EConfig Code = "E_CONFIG"
	// EUnsupportedTarget is a triple outside the supported set. Not retryable.
	EUnsupportedTarget Code = "E_UNSUPPORTED_TARGET"
	// EExternalToolFailure is a non-zero exit from the toolchain, package builder or git.
	EExternalToolFailure Code = "E_EXTERNAL_TOOL_FAILURE"
	// EArtifactNotFound means the toolchain output is not where the triple says it should be.
	EArtifactNotFound Code = "E_ARTIFACT_NOT_FOUND"
	// EManifestRender is an undefined template value.
	EManifestRender Code = "E_MANIFEST_RENDER"
	// EChecksumTimeout means the checksum fetch ran out of attempts.
	EChecksumTimeout Code = "E_CHECKSUM_TIMEOUT"
)

// configExitCode is returned for configuration and usage mistakes.
const configExitCode = 2

// Error is the typed error carried through the pipeline.
type Error struct {
	// Code classifies the failure.
	Code Code
	// Msg is a human-readable description.
	Msg string
	// Cause is the underlying error, if any.
	Cause error
	// Details holds structured context (command, template, key, uri).
	Details map[string]string
}

// Error returns "CODE: message".
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping cause.
func Wrap(code Code, msg string, cause error) error {
	return &Error{Code: code, Msg: msg, Cause: cause}
}

// WithDetails attaches structured context to err if it is an *Error.
// The details map is copied.
func WithDetails(err error, details map[string]string) error {
	var fe *Error
	if !errors.As(err, &fe) || len(details) == 0 {
		return err
	}

	merged := make(map[string]string, len(fe.Details)+len(details))
	maps.Copy(merged, fe.Details)
	maps.Copy(merged, details)

	return &Error{Code: fe.Code, Msg: fe.Msg, Cause: fe.Cause, Details: merged}
}

// CodeOf extracts the code from err, or "" when err carries none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	return ""
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// ExitCodeError wraps an error with the exit code of the subprocess that caused it.
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// WithExitCode wraps err with an explicit process exit code.
func WithExitCode(err error, code int) error {
	return &ExitCodeError{Err: err, Code: code}
}

// ExitCode maps err to a process exit status.
// A wrapped subprocess code wins; configuration problems exit with 2; everything else with 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var ec *ExitCodeError
	if errors.As(err, &ec) && ec.Code > 0 {
		return ec.Code
	}

	if CodeOf(err) == EConfig {
		return configExitCode
	}

	return 1
}

// Print writes err to w:
//
//	error_code: <CODE>
//	<message>
//	  key: value
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}

	var fe *Error
	if !errors.As(err, &fe) {
		_, _ = fmt.Fprintln(w, "error:", err)
		return
	}

	_, _ = fmt.Fprintf(w, "error_code: %s\n", fe.Code)
	_, _ = fmt.Fprintln(w, err.Error())

	for _, key := range slices.Sorted(maps.Keys(fe.Details)) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", key, fe.Details[key])
	}
}
