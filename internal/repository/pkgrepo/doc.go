// Package pkgrepo manages the local working copy of a remote package
// repository: clone on first use, write rendered manifests, commit and
// force-push them back.
//
// The access token is only ever placed in the URI passed to clone and push.
// It is removed from the checkout configuration right after cloning and is
// masked in every logged command line and returned error.
package pkgrepo
