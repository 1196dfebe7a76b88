package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjo/logql-cli/pkg/logql"
)

func TestNormalizeLongOpts(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"--loki-url=http://x", "query"}, []string{"-loki-url=http://x", "query"}},
		{[]string{"--limit", "5", "-s"}, []string{"-limit", "5", "-s"}},
		{[]string{"complete", "--", "--not-a-flag"}, []string{"complete", "--", "--not-a-flag"}},
		{[]string{"--"}, []string{"--"}},
		{nil, []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeLongOpts(tt.in), "%v", tt.in)
	}
}

// runCLI runs the command line with a scratch history file and returns
// its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	full := append([]string{"-history-file", filepath.Join(t.TempDir(), "history")}, args...)
	var out bytes.Buffer
	err := run(context.Background(), full, &out)
	return out.String(), err
}

func TestRun_Tokenize(t *testing.T) {
	out, err := runCLI(t, "tokenize", "-color", "never", `{app="api"}`, "|", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"\"api\""`)
	assert.Contains(t, out, logql.PipeKeyword.String())

	out, err = runCLI(t, "tokenize", "-color", "always", `{app="api"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "\033[")

	_, err = runCLI(t, "tokenize")
	assert.Error(t, err)
}

func TestRun_CompleteJSON(t *testing.T) {
	out, err := runCLI(t, "complete", "-o", "json", "-select", "0", `{app="`)
	require.NoError(t, err)

	var res completeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "label-value", res.Target.Kind)
	assert.Equal(t, "app", res.Target.LabelName)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "api", res.Suggestions[0].Value)
	assert.Equal(t, `{app="api"`, res.Text)
	assert.Equal(t, 10, res.Cursor)
}

func TestRun_CompleteText(t *testing.T) {
	out, err := runCLI(t, "complete", "-cursor", "3", `{na="x"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "target: label-name")
	assert.Contains(t, out, "namespace")
	assert.NotContains(t, out, "text:")
}

func TestRun_LimitFromEnv(t *testing.T) {
	t.Setenv("LOGQL_CLI_LIMIT", "1")
	out, err := runCLI(t, "complete", "-o", "json", `{app="`)
	require.NoError(t, err)

	var res completeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Suggestions, 1)
}

func TestRun_StreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.yaml")
	require.NoError(t, os.WriteFile(path, []byte("streams:\n  - {cluster: eu-1}\n"), 0o600))

	out, err := runCLI(t, "-streams", path, "complete", "-o", "json", `{cluster="`)
	require.NoError(t, err)
	assert.Contains(t, out, `"eu-1"`)

	_, err = runCLI(t, "-streams", filepath.Join(t.TempDir(), "missing.yaml"), "complete", `{`)
	assert.Error(t, err)
}

func TestRun_Validate(t *testing.T) {
	out, err := runCLI(t, "validate", `{app="api"}`, "|=", `"x"`)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	_, err = runCLI(t, "validate", `{app="api"`)
	assert.ErrorIs(t, err, logql.ErrInvalidQuerySyntax)
}

func TestRun_QueryOneOffAndFile(t *testing.T) {
	out, err := runCLI(t, "-s", "query", "-q", `{app="api"} | logfmt`)
	require.NoError(t, err)
	assert.Contains(t, out, `Accepted: {app="api"} | logfmt`)
	assert.NotContains(t, out, "Offline mode")

	_, err = runCLI(t, "-s", "query", "-q", `{app="api"`)
	assert.ErrorIs(t, err, logql.ErrInvalidQuerySyntax)

	file := filepath.Join(t.TempDir(), "q.logql")
	require.NoError(t, os.WriteFile(file, []byte("{app=\"a\"}\n{app=\"b\"}\n"), 0o600))
	out, err = runCLI(t, "query", "-c", ".values level {app=\"worker\"}", "-f", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Offline mode: 5 streams indexed")
	assert.Contains(t, out, "  - warn\n")
	assert.Equal(t, 2, strings.Count(out, "Accepted:"))
}

func TestRun_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "logql-cli dev")
}

func TestRun_Errors(t *testing.T) {
	_, err := runCLI(t, "-limit", "0", "version")
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = runCLI(t, "-no-such-flag")
	assert.Error(t, err)

	_, err = runCLI(t)
	assert.ErrorIs(t, err, flag.ErrHelp)

	_, err = runCLI(t, "-loki-url", "ftp://nope", "complete", "{")
	assert.Error(t, err)
}
