package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/signalgraph/pkg/signalgraph"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeBatchFile(t *testing.T, dir string) string {
	t.Helper()
	batch := `{
		"sourceUrl": "https://a.example",
		"candidates": [
			{"nodeType": "event", "title": "road closure on 5th", "sourceUrl": "https://a.example", "severity": "medium", "embedding": [1, 0, 0, 0]},
			{"nodeType": "ask", "title": "volunteers needed", "sourceUrl": "https://a.example", "severity": "low", "embedding": [0, 1, 0, 0]}
		]
	}`
	path := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(batch), 0o644))
	return path
}

func TestIngestCommandText(t *testing.T) {
	dir := t.TempDir()
	dbURL := "file:" + filepath.Join(dir, "cli.db")

	out, err := execute(t, "ingest", "--db", dbURL, "--input", writeBatchFile(t, dir))
	require.NoError(t, err)
	assert.Contains(t, out, "3 events persisted")
	assert.Contains(t, out, "Accepted:        2")
}

func TestIngestThenEventsAndSeverity(t *testing.T) {
	dir := t.TempDir()
	dbURL := "file:" + filepath.Join(dir, "cli.db")

	out, err := execute(t, "ingest", "--db", dbURL, "--input", writeBatchFile(t, dir), "--format", "json")
	require.NoError(t, err)

	var res signalgraph.IngestResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Summary.Accepted)

	out, err = execute(t, "events", "--db", dbURL, "--run", res.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "signals.extracted")
	assert.Contains(t, out, "signal.accepted")

	out, err = execute(t, "severity", "--db", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, "2 reviewed")
}

func TestEventsCommandUnknownRun(t *testing.T) {
	dir := t.TempDir()
	dbURL := "file:" + filepath.Join(dir, "cli.db")

	out, err := execute(t, "events", "--db", dbURL, "--run", "no-such-run")
	require.NoError(t, err)
	assert.Contains(t, out, "No events found")
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "severity", "--db", "file:unused.db", "--format", "xml")
	assert.Error(t, err)
}
