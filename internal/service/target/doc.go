// Package target resolves a user's architecture/OS/ABI selection into one of
// the supported target triples, defaulting omitted components from the host.
package target
