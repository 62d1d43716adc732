package failure

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExitCode checks subprocess codes are mirrored and config errors exit with 2.
func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(errors.New("plain")))
	require.Equal(t, 2, ExitCode(New(EConfig, "missing version")))
	require.Equal(t, 1, ExitCode(New(EUnsupportedTarget, "nope")))

	toolErr := WithExitCode(New(EExternalToolFailure, "cargo build failed"), 101)
	require.Equal(t, 101, ExitCode(fmt.Errorf("build: %w", toolErr)))
	require.Equal(t, EExternalToolFailure, CodeOf(toolErr))
}

// TestWithDetails verifies details are merged into a copy and survive wrapping.
func TestWithDetails(t *testing.T) {
	t.Parallel()

	base := New(EManifestRender, "undefined value")
	detailed := WithDetails(base, map[string]string{"key": "long_desc"})

	var fe *Error
	require.ErrorAs(t, fmt.Errorf("render: %w", detailed), &fe)
	require.Equal(t, "long_desc", fe.Details["key"])

	var original *Error
	require.ErrorAs(t, base, &original)
	require.Nil(t, original.Details)

	plain := errors.New("x")
	require.Same(t, plain, WithDetails(plain, map[string]string{"a": "b"}))
}

// TestPrint checks the operator-facing format.
func TestPrint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := WithDetails(New(EChecksumTimeout, "gave up"), map[string]string{"uri": "https://x", "attempts": "3"})
	Print(&buf, err)

	require.Equal(t, "error_code: E_CHECKSUM_TIMEOUT\nE_CHECKSUM_TIMEOUT: gave up\n  attempts: 3\n  uri: https://x\n", buf.String())
}
