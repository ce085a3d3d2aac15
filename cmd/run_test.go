package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgapi/internal/config"
	"imgapi/internal/model"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"correct=true", "expr= a=b ", "empty="})
	require.NoError(t, err)
	assert.Equal(t, []model.Parameter{
		{Key: "correct", Value: "true"},
		{Key: "expr", Value: " a=b "},
		{Key: "empty", Value: ""},
	}, params)

	for _, bad := range []string{"novalue", "=orphan", " =x"} {
		_, err := parseParams([]string{bad})
		var verr *model.ValidationError
		assert.True(t, errors.As(err, &verr), bad)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", &model.ValidationError{Message: "x"}, ExitUsageError},
		{"transport", &model.TransportError{Stage: "api", Err: errors.New("refused")}, ExitNetworkError},
		{"api", &model.APIError{StatusCode: 500}, ExitAPIError},
		{"non json", &model.NonJSONResponseError{StatusCode: 200}, ExitAPIError},
		{"busy", model.ErrBusy, ExitAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestRedactSecret(t *testing.T) {
	assert.Equal(t, "Auth:{Type:bearer Secret:[REDACTED]}", redactSecret("Auth:{Type:bearer Secret:s3cr3t}", "s3cr3t"))
	assert.Equal(t, "unchanged", redactSecret("unchanged", ""))
}

func TestFormFlags_Apply(t *testing.T) {
	sh, _ := newTestShell(t, config.DefaultConfig())
	t.Setenv(secretEnv, "from-env")

	f := &formFlags{
		endpoint: "https://api.example.com/v2",
		image:    "https://img.example.com/a.png",
		variant:  "fixed",
		project:  "alpha",
		auth:     "apikey",
		params:   []string{"mode=fast"},
	}
	require.NoError(t, f.apply(sh.sess))

	form := sh.sess.Form()
	assert.Equal(t, model.VariantFixed, form.Variant)
	assert.Equal(t, "alpha", form.ProjectID)
	assert.Equal(t, model.Auth{Type: model.AuthAPIKey, Secret: "from-env"}, form.Auth)
	assert.Equal(t, []model.Parameter{
		{Key: "correct", Value: "true"},
		{Key: "mode", Value: "fast"},
	}, sh.sess.Params().List())

	bad := &formFlags{method: "DELETE"}
	assert.Error(t, bad.apply(sh.sess))
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("success with export", func(t *testing.T) {
		srv := newTestServer(t, http.StatusCreated, `{"labels":["cat"]}`)
		cfg := config.DefaultConfig()
		cfg.ExportDir = t.TempDir()
		sh, _ := newTestShell(t, cfg)
		require.NoError(t, (&formFlags{endpoint: srv.URL + "/api", image: srv.URL + "/img.jpg", method: "GET"}).apply(sh.sess))

		var out bytes.Buffer
		code := runOnce(ctx, sh.sess, sh.client, &out, runOptions{export: true})
		assert.Equal(t, ExitSuccess, code)
		assert.Contains(t, out.String(), "Status Code: 201")
		assert.Contains(t, out.String(), "dimensions unknown", "bytes that do not decode still render")

		matches, err := filepath.Glob(filepath.Join(cfg.ExportDir, "api_response_*.json"))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"labels\": [\n    \"cat\"\n  ]\n}", string(data))
	})

	t.Run("path", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, `{"labels":["cat"]}`)
		sh, _ := newTestShell(t, config.DefaultConfig())
		require.NoError(t, (&formFlags{endpoint: srv.URL + "/api", image: srv.URL + "/img.jpg", method: "GET"}).apply(sh.sess))

		var out bytes.Buffer
		assert.Equal(t, ExitSuccess, runOnce(ctx, sh.sess, sh.client, &out, runOptions{path: "labels.0"}))
		assert.Equal(t, "labels.0: cat\n", out.String())

		out.Reset()
		assert.Equal(t, ExitUsageError, runOnce(ctx, sh.sess, sh.client, &out, runOptions{path: "missing"}))
	})

	t.Run("api error", func(t *testing.T) {
		srv := newTestServer(t, http.StatusBadRequest, `{"error":"bad image"}`)
		sh, _ := newTestShell(t, config.DefaultConfig())
		require.NoError(t, (&formFlags{endpoint: srv.URL + "/api", image: srv.URL + "/img.jpg", method: "GET"}).apply(sh.sess))

		var out bytes.Buffer
		assert.Equal(t, ExitAPIError, runOnce(ctx, sh.sess, sh.client, &out, runOptions{}))
		assert.Contains(t, out.String(), `"error": "bad image"`)
	})

	t.Run("network error", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, `{}`)
		url := srv.URL
		srv.Close()
		sh, _ := newTestShell(t, config.DefaultConfig())
		require.NoError(t, (&formFlags{endpoint: url + "/api", image: url + "/img.jpg", method: "GET"}).apply(sh.sess))

		var out bytes.Buffer
		assert.Equal(t, ExitNetworkError, runOnce(ctx, sh.sess, sh.client, &out, runOptions{}))
	})
}
