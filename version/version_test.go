package version_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/version"
)

func TestCommandVersion(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := version.CommandVersion("stakecli")
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	require.Contains(t, out.String(), "Binary:        stakecli")
	require.Contains(t, out.String(), "Version:       "+version.Version())
	require.Contains(t, out.String(), "Git Commit:")
	require.Contains(t, version.String(), "version: "+version.Version())
}
