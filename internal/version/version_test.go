package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
}

// TestCommand checks the subcommand prints the full version line.
func TestCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	cmd := NewCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	require.Equal(t, Full()+"\n", out.String())
}
