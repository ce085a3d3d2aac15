package cmd

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgapi/internal/config"
	"imgapi/internal/format"
	httpclient "imgapi/internal/http"
	"imgapi/internal/model"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("not really a jpeg"))
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestShell(t *testing.T, cfg *config.Config) (*shell, *bytes.Buffer) {
	t.Helper()
	format.SetNoColor(true)

	client := httpclient.NewClient()
	sess, err := newSession(cfg, client, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	var out bytes.Buffer
	return newShell(sess, client, strings.NewReader(""), &out), &out
}

func TestShell_RunShowHistory(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, http.StatusOK, `{"labels":[{"name":"cat"}],"score":0.9}`)
	sh, out := newTestShell(t, config.DefaultConfig())

	sh.exec(ctx, "set endpoint "+srv.URL+"/api")
	sh.exec(ctx, "set image "+srv.URL+"/img.jpg")
	sh.exec(ctx, "set method GET")
	assert.Contains(t, out.String(), "GET")

	out.Reset()
	sh.exec(ctx, "run")
	text := out.String()
	assert.Contains(t, text, "Processing request...")
	assert.Contains(t, text, "Status Code: 200")
	assert.Contains(t, text, "keys: labels, score")
	assert.Contains(t, text, `"name": "cat"`)
	assert.Contains(t, text, "[1] ")
	assert.Contains(t, text, "(current)")

	out.Reset()
	sh.exec(ctx, "show --path labels.0.name")
	assert.Contains(t, out.String(), "labels.0.name: cat")

	out.Reset()
	sh.exec(ctx, "history show 1")
	assert.Contains(t, out.String(), srv.URL+"/img.jpg")
	assert.Contains(t, out.String(), "GET")

	out.Reset()
	sh.exec(ctx, "history diff 1 1")
	assert.Contains(t, out.String(), "no differences")

	out.Reset()
	sh.exec(ctx, "history show 7")
	assert.Contains(t, out.String(), "request not found: 7")
}

func TestShell_FailedRunShowsErrorText(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, http.StatusInternalServerError, "upstream exploded")
	sh, out := newTestShell(t, config.DefaultConfig())

	sh.exec(ctx, "set endpoint "+srv.URL+"/api")
	sh.exec(ctx, "set image "+srv.URL+"/img.jpg")
	sh.exec(ctx, "set method GET")

	out.Reset()
	sh.exec(ctx, "run")
	assert.Contains(t, out.String(), "status code: 500")
	assert.Contains(t, out.String(), "upstream exploded")
	assert.Nil(t, sh.sess.Current())

	out.Reset()
	sh.exec(ctx, "show")
	assert.Contains(t, out.String(), model.ErrNoCurrent.Error())
}

func TestShell_ValidationWarning(t *testing.T) {
	sh, out := newTestShell(t, config.DefaultConfig())

	sh.exec(context.Background(), "run")
	assert.Contains(t, out.String(), "please enter both API URL and Image URL")
}

func TestShell_Params(t *testing.T) {
	ctx := context.Background()
	sh, out := newTestShell(t, config.DefaultConfig())

	sh.exec(ctx, "param add mode fast")
	sh.exec(ctx, "param set 2 value slow")
	sh.exec(ctx, `param add "" orphan`)
	sh.exec(ctx, "param rm 1")

	assert.Equal(t, []model.Parameter{
		{Key: "mode", Value: "slow"},
		{Key: "", Value: "orphan"},
	}, sh.sess.Params().List())

	out.Reset()
	sh.exec(ctx, "param rm 9")
	assert.Contains(t, out.String(), "✗")
	assert.Len(t, sh.sess.Params().List(), 2)
}

func TestShell_EditAndExport(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, http.StatusOK, `{"a":1}`)
	dir := t.TempDir()
	sh, out := newTestShell(t, config.DefaultConfig())

	sh.exec(ctx, "set endpoint "+srv.URL+"/api")
	sh.exec(ctx, "set image "+srv.URL+"/img.jpg")
	sh.exec(ctx, "set method GET")
	sh.exec(ctx, "run")
	require.NotNil(t, sh.sess.Current())

	out.Reset()
	sh.exec(ctx, `edit --set '{"a":1,}'`)
	assert.Contains(t, out.String(), "   1 {\"a\":1,}")
	assert.Contains(t, out.String(), "export disabled")

	out.Reset()
	sh.exec(ctx, "export --dir "+dir)
	assert.Contains(t, out.String(), "invalid JSON format")

	out.Reset()
	sh.exec(ctx, "edit --set '{\n  \"a\": 2\n}'")
	assert.Contains(t, out.String(), "buffer edited, 3 lines")
	assert.Contains(t, out.String(), "   1 {\n   2   \"a\": 2\n   3 }\n")

	sh.runEditor = func(path string) error {
		return os.WriteFile(path, []byte("{\"edited\": true}\n"), 0600)
	}
	out.Reset()
	sh.exec(ctx, "edit")
	assert.Equal(t, `{"edited": true}`, sh.sess.Editor().Text())
	assert.Contains(t, out.String(), "export enabled")

	out.Reset()
	sh.exec(ctx, "edit --diff")
	assert.Contains(t, out.String(), "+{\"edited\": true}")

	out.Reset()
	sh.exec(ctx, "export --dir "+dir)
	assert.Contains(t, out.String(), "Exported to")

	matches, err := filepath.Glob(filepath.Join(dir, "api_response_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, `{"edited": true}`, string(data))
}

func TestShell_Loop(t *testing.T) {
	sh, out := newTestShell(t, config.DefaultConfig())
	sh.in = strings.NewReader("form\nnonsense\nquit\nform\n")

	require.NoError(t, sh.loop(context.Background()))
	assert.True(t, sh.done)
	assert.Contains(t, out.String(), "API Configuration")
	assert.Contains(t, out.String(), `unknown command "nonsense"`)
}

func TestShell_UnbalancedQuotes(t *testing.T) {
	sh, out := newTestShell(t, config.DefaultConfig())

	sh.exec(context.Background(), `set endpoint "https://x`)
	assert.Contains(t, out.String(), "Failed to parse command")
	assert.Empty(t, sh.sess.Form().Endpoint)
}

func TestReadLocalFile_RejectsOutsideWorkingDir(t *testing.T) {
	_, err := readLocalFile("../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
