package pkgrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oshokin/releaser/internal/exec"
	"github.com/oshokin/releaser/internal/failure"
	"github.com/oshokin/releaser/internal/logger"
)

const (
	gitProgram = "git"
	fileMode   = 0o644
	dirMode    = 0o755
)

var (
	errNotACheckout = errors.New("path exists but is not a git checkout")
	errNonLocalPath = errors.New("path escapes the working copy")
	errReleased     = errors.New("working copy already released")
	errNoBranch     = errors.New("cannot determine the branch to push")
)

// File is one file written into the working copy.
type File struct {
	// Path is relative to the working copy root.
	Path    string
	Content []byte
}

// WorkingCopy is an acquired checkout of the package repository.
// It must be released with Release on every exit path.
type WorkingCopy struct {
	runner exec.CommandRunner
	remote Remote

	mu       sync.Mutex
	pushed   bool
	dirty    bool
	released bool
}

// Open clones the remote into remote.Path when it is absent and reuses the
// existing checkout otherwise.
func Open(ctx context.Context, runner exec.CommandRunner, remote Remote) (*WorkingCopy, error) {
	w := &WorkingCopy{runner: runner, remote: remote}

	_, err := os.Stat(filepath.Join(remote.Path, ".git"))

	switch {
	case err == nil:
		logger.InfoKV(ctx, "Reusing package repository checkout", "path", remote.Path)
	case errors.Is(err, os.ErrNotExist):
		if err = w.clone(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("inspect working copy: %w", err)
	}

	if err = w.configure(ctx); err != nil {
		return nil, err
	}

	return w, nil
}

// Path returns the working copy root.
func (w *WorkingCopy) Path() string {
	return w.remote.Path
}

func (w *WorkingCopy) clone(ctx context.Context) error {
	if entries, err := os.ReadDir(w.remote.Path); err == nil && len(entries) > 0 {
		return failure.Wrap(failure.EConfig, w.remote.Path, errNotACheckout)
	}

	parent := filepath.Dir(w.remote.Path)
	if err := os.MkdirAll(parent, dirMode); err != nil {
		return fmt.Errorf("create working copy parent: %w", err)
	}

	args := []string{"clone", "--depth=1"}
	if w.remote.Branch != "" {
		args = append(args, "--branch", w.remote.Branch)
	}

	args = append(args, "--", w.remote.AuthURI(), w.remote.Path)

	logger.InfoKV(ctx, "Cloning package repository", "uri", w.remote.URI, "path", w.remote.Path)

	_, err := w.git(ctx, parent, args...)

	return err
}

// configure drops the token from the stored origin and sets the commit identity.
func (w *WorkingCopy) configure(ctx context.Context) error {
	steps := [][]string{
		{"remote", "set-url", "origin", w.remote.URI},
		{"config", "user.email", w.remote.AuthorEmail},
		{"config", "user.name", w.remote.AuthorName},
	}

	for _, args := range steps {
		if _, err := w.git(ctx, w.remote.Path, args...); err != nil {
			return err
		}
	}

	return nil
}

// Write stores content at rel inside the working copy.
func (w *WorkingCopy) Write(rel string, content []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return errReleased
	}

	if !filepath.IsLocal(rel) {
		return failure.Wrap(failure.EConfig, rel, errNonLocalPath)
	}

	path := filepath.Join(w.remote.Path, rel)
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}

	if err := os.WriteFile(path, content, fileMode); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}

	w.dirty = true

	return nil
}

// Commit stages everything, commits once and force-pushes the result.
// A clean tree is still pushed when the remote branch does not point at HEAD,
// so a commit left behind by an earlier failed push is published on re-run.
// It reports false only when the remote already matches. A failed push is not
// retried and leaves the commit in the working copy.
func (w *WorkingCopy) Commit(ctx context.Context, message string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return false, errReleased
	}

	dir := w.remote.Path

	if _, err := w.git(ctx, dir, "add", "-A"); err != nil {
		return false, err
	}

	status, err := w.git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}

	branch, err := w.branch(ctx)
	if err != nil {
		return false, err
	}

	if strings.TrimSpace(status.Stdout) == "" {
		published, err := w.published(ctx, branch)
		if err != nil {
			return false, err
		}

		if published {
			w.dirty = false
			logger.Info(ctx, "Package repository is up to date, nothing to commit")

			return false, nil
		}

		w.dirty = true
		logger.InfoKV(ctx, "Local commit is not on the remote yet", "branch", branch)
	} else if _, err = w.git(ctx, dir, "commit", "-m", message); err != nil {
		return false, err
	}

	logger.InfoKV(ctx, "Pushing package repository", "uri", w.remote.URI, "branch", branch)

	if _, err = w.git(ctx, dir, "push", "--force", w.remote.AuthURI(), "HEAD:refs/heads/"+branch); err != nil {
		return false, err
	}

	w.dirty = false
	w.pushed = true

	return true, nil
}

// published reports whether the remote branch points at the local HEAD.
func (w *WorkingCopy) published(ctx context.Context, branch string) (bool, error) {
	local, err := w.git(ctx, w.remote.Path, "rev-parse", "HEAD")
	if err != nil {
		return false, err
	}

	remote, err := w.git(ctx, w.remote.Path, "ls-remote", w.remote.AuthURI(), "refs/heads/"+branch)
	if err != nil {
		return false, err
	}

	head := strings.TrimSpace(local.Stdout)
	fields := strings.Fields(remote.Stdout)

	return head != "" && len(fields) > 0 && fields[0] == head, nil
}

func (w *WorkingCopy) branch(ctx context.Context) (string, error) {
	if w.remote.Branch != "" {
		return w.remote.Branch, nil
	}

	res, err := w.git(ctx, w.remote.Path, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", err
	}

	branch := strings.TrimSpace(res.Stdout)
	if branch == "" {
		return "", failure.Wrap(failure.EExternalToolFailure, w.remote.Path, errNoBranch)
	}

	return branch, nil
}

// Release ends the acquisition. It never cleans the checkout; it only records
// how the run ended. Safe to call more than once.
func (w *WorkingCopy) Release(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return
	}

	w.released = true

	switch {
	case w.pushed:
		logger.InfoKV(ctx, "Package repository finalized", "path", w.Path())
	case w.dirty:
		logger.WarnKV(ctx, "Package repository left with unpushed changes", "path", w.Path())
	default:
		logger.DebugKV(ctx, "Package repository released unchanged", "path", w.Path())
	}
}

func (w *WorkingCopy) git(ctx context.Context, dir string, args ...string) (exec.CmdResult, error) {
	return exec.Check(ctx, w.runner, gitProgram, args, exec.RunOpts{
		Dir:    dir,
		Env:    map[string]string{"GIT_TERMINAL_PROMPT": "0"},
		Redact: w.remote.Secrets(),
	})
}

// Publish acquires the working copy, writes files, commits and pushes them,
// and releases the copy whatever happens.
func Publish(ctx context.Context, runner exec.CommandRunner, remote Remote, files []File, message string) (bool, error) {
	w, err := Open(ctx, runner, remote)
	if err != nil {
		return false, err
	}
	defer w.Release(ctx)

	for _, f := range files {
		if err = w.Write(f.Path, f.Content); err != nil {
			return false, err
		}
	}

	return w.Commit(ctx, message)
}
