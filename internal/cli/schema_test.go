package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "docqad", Short: "daemon"}
	index := &cobra.Command{Use: "index", Short: "Inspect the index"}
	stats := &cobra.Command{Use: "stats", Short: "Show stats", Aliases: []string{"st"}, Run: func(*cobra.Command, []string) {}}
	stats.Flags().StringP("output", "o", "text", "Output format")
	stats.Flags().Bool("documents", false, "List documents")
	stats.Flags().String("dsn", "", "Database URL")
	_ = stats.MarkFlagRequired("dsn")
	index.AddCommand(stats)
	root.AddCommand(index)
	root.PersistentFlags().String("api-url", "", "API base URL")
	root.AddCommand(&cobra.Command{Use: "debug", Hidden: true})
	AddHelpJSONFlag(root)
	return root
}

func TestGenerateSchema(t *testing.T) {
	root := testTree()
	schema := GenerateSchema(root)

	assert.Equal(t, "docqad", schema.Name)
	require.Len(t, schema.Subcommands, 1)
	index := schema.Subcommands[0]
	assert.Equal(t, "index", index.Name)
	require.Len(t, index.Subcommands, 1)

	stats := index.Subcommands[0]
	byName := map[string]FlagSchema{}
	for _, f := range stats.Flags {
		byName[f.Name] = f
	}
	require.Contains(t, byName, "output")
	assert.Equal(t, "o", byName["output"].Shorthand)
	assert.Equal(t, "text", byName["output"].Default)
	assert.Equal(t, "bool", byName["documents"].Type)
	assert.True(t, byName["dsn"].Required)
	assert.False(t, byName["output"].Required)
	assert.True(t, byName["api-url"].Inherited)
	assert.NotContains(t, byName, "help-json")
	assert.Equal(t, []string{"st"}, stats.Aliases)
	assert.True(t, stats.Runnable)
	assert.False(t, index.Runnable)

	// local flags first, then inherited
	assert.False(t, stats.Flags[0].Inherited)
	assert.True(t, stats.Flags[len(stats.Flags)-1].Inherited)
}

func TestHelpJSONTarget(t *testing.T) {
	root := testTree()

	target, ok := helpJSONTarget(root, []string{"index", "stats", "--help-json"})
	require.True(t, ok)
	assert.Equal(t, "stats", target.Name())

	target, ok = helpJSONTarget(root, []string{"--help-json"})
	require.True(t, ok)
	assert.Equal(t, "docqad", target.Name())

	_, ok = helpJSONTarget(root, []string{"index", "stats"})
	assert.False(t, ok)
}

func TestFindTargetCommand(t *testing.T) {
	root := testTree()

	assert.Equal(t, "stats", findTargetCommand(root, []string{"index", "stats"}).Name())
	assert.Equal(t, "stats", findTargetCommand(root, []string{"index", "st"}).Name())
	assert.Equal(t, "index", findTargetCommand(root, []string{"index", "nope"}).Name())
	assert.Equal(t, "docqad", findTargetCommand(root, nil).Name())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int{"entries": 3}))

	var out map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 3, out["entries"])
	assert.Contains(t, buf.String(), "\n  ")
}
