// Package pipeline wires the release stages together for the CLI commands.
//
// Build resolves every requested target before anything runs, then builds and
// packages the targets one after another. Publish computes checksums of the
// published artifacts, renders every manifest in memory and only then touches
// the package repository. ReleaseInfo prints the release tag, title and notes.
package pipeline
