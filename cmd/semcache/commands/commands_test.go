package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcache/internal/config"
	"github.com/dshills/semcache/pkg/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "semcache", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	for _, name := range []string{"config", "data-dir", "log-level", "log-format", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "mcp", "ingest", "search", "embed", "version"}, names)
}

func TestSearchCmdFlags(t *testing.T) {
	cmd := NewSearchCmd(&globalOptions{})

	assert.Equal(t, "search <query>", cmd.Use)
	assert.Equal(t, "5", cmd.Flags().Lookup("k").DefValue)
	assert.Equal(t, "0.5", cmd.Flags().Lookup("alpha").DefValue)
	assert.Equal(t, "true", cmd.Flags().Lookup("rerank").DefValue)
}

func TestServeCmdFlags(t *testing.T) {
	cmd := NewServeCmd(&globalOptions{})
	assert.Equal(t, "serve", cmd.Use)
	assert.Equal(t, "", cmd.Flags().Lookup("addr").DefValue)
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersion("dev", "none", "unknown") })

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "semcache 1.2.3")
	assert.Contains(t, out, "Commit: abc123")
	assert.Contains(t, out, "SQLite:")
}

func TestSearchRequiresQuery(t *testing.T) {
	_, err := run(t, "search")
	assert.Error(t, err)
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	_, err := run(t, "--data-dir", t.TempDir(), "search", "--k", "0", "cats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--k must be positive")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--data-dir", t.TempDir(), "--log-level", "loud", "search", "cats")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cats.txt"),
		[]byte("Cats are small domesticated mammals. Cats sleep for most of the day."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python.txt"),
		[]byte("Python is a programming language known for its readable syntax."), 0o644))
	return dir
}

func TestIngestAndSearch(t *testing.T) {
	dataDir := t.TempDir()
	corpus := writeCorpus(t)

	out, err := run(t, "--data-dir", dataDir, "ingest", corpus)
	require.NoError(t, err)
	assert.Contains(t, out, "Files loaded:    2")

	out, err = run(t, "--data-dir", dataDir, "--format", "json", "search", "--k", "1", "how do cats sleep")
	require.NoError(t, err)

	var resp struct {
		Results []struct {
			ID          string  `json:"id"`
			Content     string  `json:"content"`
			Score       float64 `json:"score"`
			Explanation string  `json:"explanation"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Contains(t, resp.Results[0].Content, "Cats")
	assert.NotEmpty(t, resp.Results[0].Explanation)

	out, err = run(t, "--data-dir", dataDir, "search", "--rerank=false", "python syntax")
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "python.txt_chunk_0")
}

func TestSearchEmptyCorpus(t *testing.T) {
	out, err := run(t, "--data-dir", t.TempDir(), "search", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "No results for query: anything")
}

func TestIngestJSON(t *testing.T) {
	out, err := run(t, "--data-dir", t.TempDir(), "--format", "json", "ingest", writeCorpus(t))
	require.NoError(t, err)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 2, stats["files_loaded"])
	assert.EqualValues(t, 0, stats["chunks_reused"])
}

func TestConfigFlag(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")

	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "semcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dataDir+"\n"), 0o644))

	_, err := run(t, "--config", path, "ingest", writeCorpus(t))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dataDir, "cache"))
	assert.NoError(t, err)
}

func TestEmbedCmd(t *testing.T) {
	out, err := run(t, "--data-dir", t.TempDir(), "--format", "json", "embed", "hello world")
	require.NoError(t, err)

	var emb struct {
		Provider  string    `json:"provider"`
		Dimension int       `json:"dimension"`
		Vector    []float32 `json:"vector"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &emb))
	assert.Equal(t, "local", emb.Provider)
	assert.Equal(t, 384, emb.Dimension)
	assert.Len(t, emb.Vector, 384)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "héé...", truncate("héééé", 3))
}
