package clientconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.True(t, cfg.Autosave)
	assert.NotEmpty(t, cfg.CredentialsPath)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skilleval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"api_url: https://assess.example.com\n"+
			"timeout: 30s\n"+
			"autosave: false\n"+
			"credentials_path: "+filepath.Join(dir, "creds.json")+"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://assess.example.com", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.False(t, cfg.Autosave)
	assert.Equal(t, filepath.Join(dir, "creds.json"), cfg.CredentialsPath)

	t.Setenv("SKILLEVAL_API_URL", "http://10.0.0.5:8080")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080", cfg.APIURL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SKILLEVAL_API_URL", "localhost:8080")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
