package cmd

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-hangar/pkg/crypto"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"region=EU", "int:id=7", "list:int:ids=1,2", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"region": "EU",
		"id":     int64(7),
		"ids":    []int64{1, 2},
		"note":   "a=b",
	}, params)

	_, err = parseParams([]string{"region"})
	assert.ErrorContains(t, err, "expected key=value")

	_, err = parseParams([]string{"int:id=x"})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	row := models.NewRow()
	row.Set("name", "Ada")

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, &models.ExecutionResult{SQL: "SELECT name FROM customers", Rows: []models.Row{row}, One: true}))
	assert.JSONEq(t, `{"sql": "SELECT name FROM customers", "result": {"name": "Ada"}}`, buf.String())
}

// writeFixture creates a seeded SQLite database, a catalog and a config
// that points at both, and returns the config path.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hangar.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	for _, stmt := range []string{
		"CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT NOT NULL)",
		"INSERT INTO customers (id, name, region) VALUES (1, 'Ada', 'EU'), (2, 'Grace', 'US')",
	} {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
queries:
  - name: customers_by_region
    database: local
    sql: SELECT id, name FROM customers WHERE region = '%(region)s' AND id >= %(min_id)d
`), 0o600))

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
env: test
log_level: error
catalog_path: `+catalogPath+`
databases:
  local:
    type: sqlite
    options:
      path: `+dbPath+`
`), 0o600))
	return configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVariablesCommand(t *testing.T) {
	configPath := writeFixture(t)

	out, err := execute(t, "variables", "customers_by_region", "--config", configPath, "--env-file", "")
	require.NoError(t, err)
	assert.Equal(t, "region\nint:min_id\n", out)
}

func TestRunCommand(t *testing.T) {
	configPath := writeFixture(t)

	out, err := execute(t, "run", "customers_by_region", "--config", configPath, "--env-file", "",
		"-p", "region=EU", "-p", "int:min_id=1")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"sql": "SELECT id, name FROM customers WHERE region = 'EU' AND id >= 1",
		"result": [{"id": 1, "name": "Ada"}]
	}`, out)
}

func TestRunCommand_UnknownQuery(t *testing.T) {
	configPath := writeFixture(t)

	_, err := execute(t, "variables", "nope", "--config", configPath, "--env-file", "")
	assert.ErrorContains(t, err, `query "nope"`)
}

func TestSealPasswordCommand(t *testing.T) {
	t.Setenv("HANGAR_CREDENTIALS_KEY", "cli test key")
	rootCmd.SetIn(strings.NewReader("s3cret\n"))
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	out, err := execute(t, "seal-password", "reporting", "--env-file", "")
	require.NoError(t, err)

	box, err := crypto.NewSecretBox("cli test key")
	require.NoError(t, err)
	opened, err := box.Open("reporting", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", opened)
}
