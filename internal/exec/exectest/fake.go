// Package exectest provides a scripted CommandRunner for tests.
package exectest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/oshokin/releaser/internal/exec"
)

// ErrNotFound is returned by LookPath for programs not registered with the fake.
var ErrNotFound = errors.New("executable file not found in $PATH")

// Call records one invocation.
type Call struct {
	Name string
	Args []string
	Opts exec.RunOpts
}

// Line joins name and args with spaces.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Response is what the fake returns for a matching call.
type Response struct {
	Result exec.CmdResult
	Err    error
	// Do runs before the response is returned, e.g. to create build outputs.
	Do func(call Call) error
}

type rule struct {
	prefix   string
	response Response
}

// Runner is a fake exec.CommandRunner. Responses are matched by command-line
// prefix; the first matching rule wins. Unmatched calls succeed with exit 0.
type Runner struct {
	mu    sync.Mutex
	rules []rule
	paths map[string]string
	calls []Call
}

// NewRunner creates a fake with the given programs available on PATH.
func NewRunner(programs ...string) *Runner {
	paths := make(map[string]string, len(programs))
	for _, p := range programs {
		paths[p] = "/usr/bin/" + p
	}

	return &Runner{paths: paths}
}

// On registers a response for commands whose line starts with prefix.
func (r *Runner) On(prefix string, response Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{prefix: prefix, response: response})

	return r
}

// Run implements exec.CommandRunner.
func (r *Runner) Run(_ context.Context, name string, args []string, opts exec.RunOpts) (exec.CmdResult, error) {
	call := Call{Name: name, Args: slices.Clone(args), Opts: opts}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	rules := slices.Clone(r.rules)
	r.mu.Unlock()

	line := call.Line()
	for _, candidate := range rules {
		if !strings.HasPrefix(line, candidate.prefix) {
			continue
		}

		if candidate.response.Do != nil {
			if err := candidate.response.Do(call); err != nil {
				return exec.CmdResult{}, err
			}
		}

		return candidate.response.Result, candidate.response.Err
	}

	return exec.CmdResult{}, nil
}

// LookPath implements exec.CommandRunner.
func (r *Runner) LookPath(file string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.paths[file]; ok {
		return p, nil
	}

	return "", ErrNotFound
}

// Calls returns a copy of every recorded call.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.calls)
}

// Lines returns the command line of every recorded call.
func (r *Runner) Lines() []string {
	calls := r.Calls()

	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		lines = append(lines, c.Line())
	}

	return lines
}
