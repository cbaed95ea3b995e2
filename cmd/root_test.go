// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommandNoPreRun is for testing argument and flag validation without
// triggering the config loading in PersistentPreRunE.
func executeCommandNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Create a new root command for each test run to ensure isolation.
	testRootCmd := NewRootCommand()
	testRootCmd.PersistentPreRunE = nil

	buf := new(bytes.Buffer)
	testRootCmd.SetOut(buf)
	testRootCmd.SetErr(buf)
	testRootCmd.SetArgs(args)
	err := testRootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCommandVersionFlag(t *testing.T) {
	testRootCmd := NewRootCommand()
	var out bytes.Buffer
	testRootCmd.SetOut(&out)
	testRootCmd.SetErr(&out)
	testRootCmd.SetArgs([]string{"--version"})

	err := testRootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "gatescout version "+Version)
}

func TestRootCommandNoArgs(t *testing.T) {
	testRootCmd := NewRootCommand()
	var out bytes.Buffer
	testRootCmd.SetOut(&out)
	testRootCmd.SetErr(&out)
	testRootCmd.SetArgs([]string{})

	err := testRootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Gatescout locates checkout flows")
	assert.Contains(t, out.String(), "analyze")
	assert.Contains(t, out.String(), "serve")
}

func TestAnalyzeCommandArgValidation(t *testing.T) {
	t.Run("should reject a missing target", func(t *testing.T) {
		_, err := executeCommandNoPreRun(t, "analyze")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "accepts 1 arg")
	})

	t.Run("should reject multiple targets", func(t *testing.T) {
		_, err := executeCommandNoPreRun(t, "analyze", "a.example", "b.example")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "accepts 1 arg")
	})

	t.Run("should reject an unknown budget value", func(t *testing.T) {
		_, err := executeCommandNoPreRun(t, "analyze", "a.example", "--budget", "soon")
		require.Error(t, err)
	})
}

func TestServeCommandRejectsArgs(t *testing.T) {
	_, err := executeCommandNoPreRun(t, "serve", "extra")
	require.Error(t, err)
}
