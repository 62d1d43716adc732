// Package failure defines the error taxonomy of a release run.
//
// Every fatal condition surfaced to the operator carries a stable Code. Errors
// caused by a subprocess also carry its exit code so the CLI can mirror it.
package failure
