package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/kbsearch/internal/auth"
)

func newKnowledgeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/datasets":
			_, _ = w.Write([]byte(`{"data": [
				{"id": "ds-1", "name": "Ruby Docs"},
				{"id": "ds-2", "name": "Broken"}
			]}`))
		case r.URL.Path == "/datasets/ds-1/retrieve":
			_, _ = w.Write([]byte(`{"query": {"content": "ruby class"}, "records": [
				{"segment": {"content": "class Foo; end", "document": {"name": "ruby.md"}}, "score": 0.8421}
			]}`))
		case r.URL.Path == "/datasets/ds-2/retrieve":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func setupEnv(t *testing.T, baseURL string) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("DIFY_BASE_URL", baseURL)
	t.Setenv("DIFY_API_KEY", "dataset-test")
	t.Setenv("CATALOG_FILE", filepath.Join(dir, "datasets.json"))
	t.Setenv("RERANK_PROVIDER", "none")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "cli-test-secret")
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSearchCommand_JSON(t *testing.T) {
	api := newKnowledgeAPI(t)
	setupEnv(t, api.URL)

	stdout, _, err := execute(t, "search", "-d", "ds-1", "-d", "ds-2", "--format", "json", "ruby", "class")
	require.NoError(t, err)

	var reports []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 2)

	assert.Equal(t, "ds-1", reports[0]["dataset_id"])
	assert.Equal(t, "ruby class", reports[0]["query"])
	first := reports[0]["results"].([]any)[0].(map[string]any)
	assert.Equal(t, 0.8421, first["score"])

	assert.Equal(t, "ds-2", reports[1]["dataset_id"])
	assert.Contains(t, reports[1], "error")
}

func TestSearchCommand_Text(t *testing.T) {
	api := newKnowledgeAPI(t)
	setupEnv(t, api.URL)

	stdout, _, err := execute(t, "search", "-d", "ds-1", "ruby class")
	require.NoError(t, err)
	assert.Contains(t, stdout, "--- Results for Dataset: ds-1 ---")
	assert.Contains(t, stdout, "1. ruby.md  score 0.8421")
}

func TestSearchCommand_All(t *testing.T) {
	api := newKnowledgeAPI(t)
	setupEnv(t, api.URL)

	stdout, _, err := execute(t, "search", "--all", "ruby class")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ds-1 (Ruby Docs)")
	assert.Contains(t, stdout, "ds-2 (Broken)")
	assert.Contains(t, stdout, "request_failed (status 500)")
}

func TestSearchCommand_NoDatasets(t *testing.T) {
	api := newKnowledgeAPI(t)
	setupEnv(t, api.URL)

	stdout, stderr, err := execute(t, "search", "ruby")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "No datasets selected.")
}

func TestSearchCommand_BlankQuery(t *testing.T) {
	api := newKnowledgeAPI(t)
	setupEnv(t, api.URL)

	_, _, err := execute(t, "search", "-d", "ds-1", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no query provided")
}

func TestSearchCommand_InvalidFormat(t *testing.T) {
	api := newKnowledgeAPI(t)
	setupEnv(t, api.URL)

	_, _, err := execute(t, "search", "-d", "ds-1", "--format", "xml", "ruby")
	assert.Error(t, err)
}

func TestDatasetsCommand(t *testing.T) {
	api := newKnowledgeAPI(t)
	setupEnv(t, api.URL)

	stdout, _, err := execute(t, "datasets")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Equal(t, []string{"ds-1  Ruby Docs", "ds-2  Broken"}, lines)

	_, err = os.Stat(os.Getenv("CATALOG_FILE"))
	assert.NoError(t, err, "listing should be cached")

	stdout, _, err = execute(t, "datasets", "--refresh", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "id: ds-1")
}

func TestTokenCommand(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")

	stdout, stderr, err := execute(t, "token", "--name", "ci-bot")
	require.NoError(t, err)
	assert.Contains(t, stderr, "expires at")

	manager := auth.NewJWTManager(auth.DefaultJWTConfig("cli-test-secret"))
	claims, err := manager.ValidateToken(strings.TrimSpace(stdout))
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", claims.ClientName)

	_, _, err = execute(t, "token")
	assert.Error(t, err, "--name is required")
}

func TestTokenCommand_Refresh(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")

	manager := auth.NewJWTManager(auth.DefaultJWTConfig("cli-test-secret"))
	clientID := uuid.New()
	expired, err := manager.GenerateTokenWithExpiry(clientID, "ci-bot", -time.Minute)
	require.NoError(t, err)

	stdout, stderr, err := execute(t, "token", "--refresh", expired, "--expiry", "1h")
	require.NoError(t, err)
	assert.Contains(t, stderr, "expires at")

	claims, err := manager.ValidateToken(strings.TrimSpace(stdout))
	require.NoError(t, err)
	assert.Equal(t, clientID.String(), claims.ClientID)
	assert.Equal(t, "ci-bot", claims.ClientName)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	_, _, err = execute(t, "token", "--refresh", "not-a-jwt")
	assert.ErrorContains(t, err, "failed to refresh token")

	_, _, err = execute(t, "token", "--refresh", expired, "--name", "other")
	assert.Error(t, err, "--name and --refresh are exclusive")
}
