package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"enrich", "sync", "migrate", "reprice", "stats", "dedupe"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "maps-enrich", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestEnrichCommand_Flags(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"dry-run", "false"},
		{"limit", "0"},
		{"sync", "false"},
		{"sync-only", "false"},
		{"workers", "20"},
		{"page-size", "1000"},
		{"metrics-addr", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := enrichCmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag, "enrich should have --%s flag", tt.name)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestSyncCommand_Flags(t *testing.T) {
	flag := syncCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "100", flag.DefValue)
	assert.NotNil(t, syncCmd.Flags().Lookup("dry-run"))
}

func TestStatsCommand_Flags(t *testing.T) {
	flag := statsCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "json", flag.DefValue)
	assert.NotNil(t, statsCmd.Flags().Lookup("alert"))
}

func TestDedupeAndReprice_DryRunFlags(t *testing.T) {
	assert.NotNil(t, dedupeCmd.Flags().Lookup("limit"))
	assert.NotNil(t, repriceCmd.Flags().Lookup("dry-run"))
}

func TestDedupeCommand_DryRunByDefault(t *testing.T) {
	flag := dedupeCmd.Flags().Lookup("commit")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
	assert.Nil(t, dedupeCmd.Flags().Lookup("dry-run"), "merges need an explicit opt-in")
}
