package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strconv"
	"strings"

	"github.com/oshokin/releaser/internal/failure"
	"github.com/oshokin/releaser/internal/logger"
)

// notFoundExitCode is what shells report for a missing command.
const notFoundExitCode = 127

// redactedValue replaces secrets in rendered command lines.
const redactedValue = "***"

// RunOpts controls a single subprocess invocation.
type RunOpts struct {
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Env is overlaid on top of the current environment.
	Env map[string]string
	// Stdout and Stderr, when set, receive a live copy of the output.
	Stdout io.Writer
	Stderr io.Writer
	// Redact lists secrets that must never appear in logs or errors.
	Redact []string
}

// CmdResult is the outcome of a finished subprocess.
type CmdResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner runs external programs synchronously.
// Run returns an error only when the process could not be run at all;
// a non-zero exit is reported through CmdResult.ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error)
	LookPath(file string) (string, error)
}

// OSRunner is the CommandRunner backed by os/exec.
type OSRunner struct{}

// NewOSRunner returns a runner that starts real processes.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run implements CommandRunner.
func (r *OSRunner) Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir

	if len(opts.Env) > 0 {
		env := os.Environ()
		for key, value := range opts.Env {
			env = append(env, key+"="+value)
		}

		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = teeWriter(&stdout, opts.Stdout)
	cmd.Stderr = teeWriter(&stderr, opts.Stderr)

	err := cmd.Run()
	result := CmdResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return result, err
}

// LookPath implements CommandRunner.
func (r *OSRunner) LookPath(file string) (string, error) {
	return osexec.LookPath(file)
}

// Check runs the command and turns any failure into an E_EXTERNAL_TOOL_FAILURE
// carrying the (redacted) command line and the subprocess exit code.
func Check(ctx context.Context, runner CommandRunner, name string, args []string, opts RunOpts) (CmdResult, error) {
	line := CommandLine(name, args, opts.Redact...)
	logger.DebugKV(ctx, "Running command", "command", line, "dir", opts.Dir)

	result, err := runner.Run(ctx, name, args, opts)
	if err != nil {
		code := 1
		if errors.Is(err, osexec.ErrNotFound) {
			code = notFoundExitCode
		}

		toolErr := failure.WithDetails(
			failure.Wrap(failure.EExternalToolFailure, "could not run "+name, redactError(err, opts.Redact)),
			map[string]string{"command": line},
		)

		return result, failure.WithExitCode(toolErr, code)
	}

	if result.ExitCode != 0 {
		details := map[string]string{
			"command":   line,
			"exit_code": strconv.Itoa(result.ExitCode),
		}

		if tail := lastLine(redact(result.Stderr, opts.Redact)); tail != "" {
			details["stderr"] = tail
		}

		toolErr := failure.WithDetails(
			failure.New(failure.EExternalToolFailure, fmt.Sprintf("%s exited with code %d", name, result.ExitCode)),
			details,
		)

		return result, failure.WithExitCode(toolErr, result.ExitCode)
	}

	return result, nil
}

// CommandLine renders name and args for humans, masking every secret.
func CommandLine(name string, args []string, secrets ...string) string {
	return redact(strings.Join(append([]string{name}, args...), " "), secrets)
}

func redact(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}

		s = strings.ReplaceAll(s, secret, redactedValue)
	}

	return s
}

func redactError(err error, secrets []string) error {
	masked := redact(err.Error(), secrets)
	if masked == err.Error() {
		return err
	}

	return errors.New(masked)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}

	return s
}

func teeWriter(capture *bytes.Buffer, live io.Writer) io.Writer {
	if live == nil {
		return capture
	}

	return io.MultiWriter(capture, live)
}
