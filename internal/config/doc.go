// Package config loads the releaser settings (releaser.yaml), the project
// manifest (Cargo.toml) and the release vars file.
//
// Load resolves the project root once; every path in Config is absolute after
// that, so no component depends on the process working directory.
package config
