package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "POST", cfg.Method)
	assert.Equal(t, "generic", cfg.Variant)
	assert.Equal(t, 60*time.Second, cfg.APITimeout())
	assert.Equal(t, 10*time.Second, cfg.ImageFetchTimeout())
	assert.False(t, cfg.GetNoColor())
	require.Len(t, cfg.Params, 1)
	assert.Equal(t, "correct", cfg.Params[0].Key)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "imgapi.yaml")
	content := `endpoint: https://api.example.com/analyze
method: get
variant: fixed
projects: [alpha, beta]
defaultProject: beta
timeout: 5s
noColor: true
aliases:
  vision: https://vision.example.com/v1
params:
  - key: threshold
    value: "0.5"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/analyze", cfg.Endpoint)
	assert.Equal(t, "GET", cfg.Method)
	assert.Equal(t, "fixed", cfg.Variant)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Projects)
	assert.Equal(t, 5*time.Second, cfg.APITimeout())
	assert.Equal(t, 10*time.Second, cfg.ImageFetchTimeout())
	assert.True(t, cfg.GetNoColor())
	assert.Equal(t, "form", cfg.Encoding, "unset keys keep defaults")
	require.Len(t, cfg.Params, 1)
	assert.Equal(t, "threshold", cfg.Params[0].Key)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad method", "method: PUT\n"},
		{"bad variant", "variant: other\n"},
		{"bad encoding", "encoding: xml\n"},
		{"unknown default project", "projects: [a]\ndefaultProject: b\n"},
		{"malformed yaml", "endpoint: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "imgapi.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Aliases = map[string]string{"a": "https://a.example.com"}

	merged := base.Merge(&Config{
		Endpoint: "https://x/a",
		NoColor:  BoolPtr(true),
		Aliases:  map[string]string{"b": "https://b.example.com"},
	})

	assert.Equal(t, "https://x/a", merged.Endpoint)
	assert.True(t, merged.GetNoColor())
	assert.Len(t, merged.Aliases, 2)
	assert.Equal(t, "POST", merged.Method)
	assert.Empty(t, base.Endpoint, "merge must not mutate the receiver")
}

func TestResolveAlias(t *testing.T) {
	cfg := &Config{Aliases: map[string]string{"vision": "https://vision.example.com/v1/"}}

	tests := []struct {
		in   string
		want string
	}{
		{"https://other.example.com/x", "https://other.example.com/x"},
		{"vision", "https://vision.example.com/v1"},
		{"vision/analyze", "https://vision.example.com/v1/analyze"},
		{"unknown/analyze", "unknown/analyze"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.ResolveAlias(tt.in), tt.in)
	}
}

func TestHasProject(t *testing.T) {
	assert.True(t, (&Config{}).HasProject("anything"))

	cfg := &Config{Projects: []string{"alpha"}}
	assert.True(t, cfg.HasProject("alpha"))
	assert.False(t, cfg.HasProject("beta"))
}
