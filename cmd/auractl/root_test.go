package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"dlq", "once"},
		{"dlq", "run"},
		{"failures", "list"},
		{"failures", "replay"},
		{"missions", "generate"},
	} {
		cmd, rest, err := root.Find(path)
		require.NoError(t, err, path)
		require.Empty(t, rest, path)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMissionsGenerateRequiresAccount(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"missions", "generate"})
	require.Error(t, root.Execute())
}
