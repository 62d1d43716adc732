// Package hostdeps prepares a build host for cross compilation: the Windows
// cross linker from the system package manager and every supported target in
// the toolchain installer.
package hostdeps
