// Package checksum computes SHA-256 digests of published artifacts, retrying
// while the hosting service catches up with a fresh upload.
package checksum
