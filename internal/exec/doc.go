// Package exec runs external programs (toolchain, package builder, git) as
// blocking subprocesses behind the CommandRunner interface.
//
// Check converts a non-zero exit into a failure.EExternalToolFailure that keeps
// the exit code, so callers never have to inspect CmdResult themselves.
package exec
