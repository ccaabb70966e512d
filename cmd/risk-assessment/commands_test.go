package main

import (
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	tests := []struct {
		name     string
		required []string
	}{
		{name: "run", required: []string{"risk-config", "data-config", "anonymization-config", "name"}},
		{name: "series", required: []string{"series-config"}},
		{name: "targets", required: []string{"data-config"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{tt.name})
			require.NoError(t, err)
			assert.Equal(t, tt.name, cmd.Name())

			for _, flag := range tt.required {
				f := cmd.Flags().Lookup(flag)
				require.NotNil(t, f, flag)
				assert.Equal(t, []string{"true"}, f.Annotations[cobra.BashCompOneRequiredFlag])
			}
		})
	}
}

func TestRootCmd_ConfigFromEnvironment(t *testing.T) {
	t.Setenv("RISK_ASSESSMENT_CONFIG_PATH", "/etc/risk/config.yaml")

	root := newRootCmd()
	assert.Equal(t, "/etc/risk/config.yaml", root.PersistentFlags().Lookup("config").DefValue)
}

func TestRootCmd_MissingFlags(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"series"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "series-config")
}

func TestRootCmd_TargetsMissingConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"targets", "--config", "missing.yaml", "--data-config", "data.yml"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
