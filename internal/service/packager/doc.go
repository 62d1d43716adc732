// Package packager turns toolchain outputs into distributable files: a
// deterministic archive for every target and, on Linux targets, a Debian
// package when the package builder is installed.
package packager
