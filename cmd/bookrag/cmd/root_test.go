package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with the given args and returns the
// combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: the root command with no arguments
	// When: executing it
	output, err := runCLI(t)

	// Then: it should print usage without error
	require.NoError(t, err)
	assert.Contains(t, output, "bookrag")
	assert.Contains(t, output, "retrieve")
	assert.Contains(t, output, "index")
}

func TestRootCmd_HasExpectedSubcommands(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// When: listing subcommands
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	// Then: every documented command is registered
	for _, want := range []string{"index", "retrieve", "eval", "qrels", "stats", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	// Given: the root command
	// When: executing an unknown subcommand
	_, err := runCLI(t, "frobnicate")

	// Then: it should fail
	require.Error(t, err)
}
