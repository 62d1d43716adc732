package pkgrepo

import (
	"net/url"
	"slices"
)

// Remote describes the package repository and the identity used to push to it.
type Remote struct {
	// URI is the remote location without credentials.
	URI string
	// Username is paired with Token in the authenticated URI.
	Username string
	// Token is the access token; empty means the URI is used as is.
	Token string
	// Path is the absolute location of the working copy.
	Path string
	// Branch to push; empty means the checkout's current branch.
	Branch      string
	AuthorName  string
	AuthorEmail string
}

// AuthURI returns URI with the token embedded for http(s) remotes.
func (r Remote) AuthURI() string {
	if r.Token == "" {
		return r.URI
	}

	u, err := url.Parse(r.URI)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return r.URI
	}

	if r.Username == "" {
		u.User = url.User(r.Token)
	} else {
		u.User = url.UserPassword(r.Username, r.Token)
	}

	return u.String()
}

// Secrets lists every form of the token that may show up in command output.
func (r Remote) Secrets() []string {
	if r.Token == "" {
		return nil
	}

	secrets := []string{r.Token}

	for _, escaped := range []string{url.PathEscape(r.Token), url.QueryEscape(r.Token)} {
		if !slices.Contains(secrets, escaped) {
			secrets = append(secrets, escaped)
		}
	}

	return secrets
}
