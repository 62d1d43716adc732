// Package manifest renders release manifests (package-manager formulas, snap
// definitions, control files) from text templates with strict value lookup.
package manifest
