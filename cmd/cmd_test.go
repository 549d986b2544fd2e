package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommandNoPreRun runs the CLI without triggering config loading,
// for argument and flag validation tests.
func executeCommandNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testRootCmd := NewRootCommand()
	testRootCmd.PersistentPreRunE = nil

	buf := new(bytes.Buffer)
	testRootCmd.SetOut(buf)
	testRootCmd.SetErr(buf)
	testRootCmd.SetArgs(args)
	err := testRootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeCommand runs the CLI with the full PersistentPreRunE chain
// against an isolated global viper.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})

	testRootCmd := NewRootCommand()
	buf := new(bytes.Buffer)
	testRootCmd.SetOut(buf)
	testRootCmd.SetErr(buf)
	testRootCmd.SetArgs(args)
	err := testRootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "test-config-*.yaml")
	require.NoError(t, err)
	_, err = tmpfile.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestVersionFlag(t *testing.T) {
	output, err := executeCommandNoPreRun(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", output)
}

func TestRunCommandArgs(t *testing.T) {
	_, err := executeCommandNoPreRun(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestActionsCommand(t *testing.T) {
	t.Run("prompt listing", func(t *testing.T) {
		output, err := executeCommandNoPreRun(t, "actions")
		require.NoError(t, err)
		assert.Contains(t, output, "done")
		assert.Contains(t, output, "tap_element")
		assert.Contains(t, output, "enter_text")
	})

	t.Run("json schema", func(t *testing.T) {
		output, err := executeCommandNoPreRun(t, "actions", "--json")
		require.NoError(t, err)

		var schema map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(output), &schema))
		assert.Contains(t, output, "tap_element")
		assert.Contains(t, output, "get_dropdown_options")
	})
}

func TestConfigFlagOverride(t *testing.T) {
	configFile := createTempConfig(t, `
agent:
  max_steps: 7
`)
	_, err := executeCommand(t, "actions", "--config", configFile)
	require.NoError(t, err)

	require.NotNil(t, loadedConfig)
	assert.Equal(t, 7, loadedConfig.Agent.MaxSteps)
	assert.Equal(t, 3, loadedConfig.Agent.MaxFailures, "defaults survive partial config files")
}

func TestInvalidConfigRejected(t *testing.T) {
	configFile := createTempConfig(t, `
agent:
  dispatcher:
    workers: 0
`)
	_, err := executeCommand(t, "actions", "--config", configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
