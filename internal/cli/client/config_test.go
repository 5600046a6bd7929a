package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigPath(t *testing.T) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "docqa", "config.yaml")

	old := getConfigPathFunc
	getConfigPathFunc = func() (string, error) {
		return configPath, nil
	}
	t.Cleanup(func() { getConfigPathFunc = old })
	return configPath
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, filepath.Join("docqa", "config.yaml")))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	withConfigPath(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, &GlobalConfig{}, config)
}

func TestSaveAndLoadGlobalConfig(t *testing.T) {
	configPath := withConfigPath(t)

	err := SaveGlobalConfig(&GlobalConfig{APIURL: "http://docs.internal:8080", SessionID: "s-1"})
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "api_url: http://docs.internal:8080")
	assert.Contains(t, string(data), "session_id: s-1")

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://docs.internal:8080", config.APIURL)
	assert.Equal(t, "s-1", config.SessionID)
}

func TestLoadGlobalConfig_InvalidYAML(t *testing.T) {
	configPath := withConfigPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("api_url: [unterminated"), 0600))

	_, err := LoadGlobalConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestSaveGlobalConfig_Nil(t *testing.T) {
	assert.Error(t, SaveGlobalConfig(nil))
}

func TestGlobalConfig_SetGet(t *testing.T) {
	var c GlobalConfig

	require.NoError(t, c.Set("api_url", "https://docs.example.com/"))
	v, err := c.Get("api_url")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com", v)

	require.NoError(t, c.Set("session_id", "abc"))
	assert.Equal(t, "abc", c.SessionID)

	require.NoError(t, c.Set("session_id", ""))
	assert.Empty(t, c.SessionID)
}

func TestGlobalConfig_SetRejectsBadInput(t *testing.T) {
	var c GlobalConfig

	err := c.Set("api_key", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url, session_id")

	assert.Error(t, c.Set("api_url", "localhost:8080"))
	assert.Error(t, c.Set("api_url", "ftp://host"))
	assert.Empty(t, c.APIURL)

	_, err = c.Get("nope")
	assert.Error(t, err)
}

func TestResolveAPIURL(t *testing.T) {
	withConfigPath(t)
	t.Setenv(envAPIURL, "")

	source, u, err := ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, source)
	assert.Equal(t, defaultAPIURL, u)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://from-file:1"}))
	source, u, err = ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, SourceGlobalConfig, source)
	assert.Equal(t, "http://from-file:1", u)

	t.Setenv(envAPIURL, "http://from-env:2/")
	source, u, err = ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, SourceEnv, source)
	assert.Equal(t, "http://from-env:2", u)

	source, u, err = ResolveAPIURL("http://from-flag:3")
	require.NoError(t, err)
	assert.Equal(t, SourceFlag, source)
	assert.Equal(t, "http://from-flag:3", u)
}
