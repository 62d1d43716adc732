// Package release contains the domain types of a release run: target triples,
// build artifacts, packaged outputs, checksum records and the immutable
// release Context rendered into downstream package manifests.
package release
