package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Registers the adapters validated below.
	_ "github.com/leapstack-labs/leaptable/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leaptable/pkg/adapters/postgres"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("state", "", "")
	fs.String("env", "", "")
	fs.String("output", "", "")
	fs.String("index-type", "", "")
	fs.String("index-host", "", "")
	fs.Int("index-port", 0, "")
	fs.String("lock-backend", "", "")
	fs.Int("max-facet-values", 0, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, src, err := Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, src.File)
	assert.True(t, filepath.IsAbs(cfg.StatePath))
	assert.Equal(t, DefaultStateFile, filepath.Join(filepath.Base(filepath.Dir(cfg.StatePath)), filepath.Base(cfg.StatePath)))
	assert.Equal(t, LockBackendMemory, cfg.Lock.Backend)
	assert.Equal(t, uint64(DefaultMaxRetries), cfg.Worker.MaxRetries)
	assert.Equal(t, DefaultBaseDelay, cfg.Worker.BaseDelay)
	assert.Equal(t, DefaultMaxFacetValues, cfg.Facets.MaxValues)
	assert.Equal(t, OutputText, cfg.OutputFormat)
	assert.Nil(t, cfg.Index)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
state_path: state/leaptable.db
index:
  type: mysql
  host: db.internal
  database: tables
  user: leaptable
  options:
    tls: "true"
worker:
  max_retries: 3
  base_delay: 2s
facets:
  max_values: 25
`)

	cfg, src, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, src.File)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "state", "leaptable.db"), cfg.StatePath)
	require.NotNil(t, cfg.Index)
	assert.Equal(t, "mysql", cfg.Index.Type)
	assert.Equal(t, 3306, cfg.Index.Port)
	assert.Equal(t, map[string]string{"tls": "true"}, cfg.Index.Options)
	assert.Equal(t, uint64(3), cfg.Worker.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Worker.BaseDelay)
	assert.Equal(t, 25, cfg.Facets.MaxValues)

	ac := cfg.Index.AdapterConfig()
	assert.Equal(t, "leaptable", ac.Username)
	assert.Equal(t, "tables", ac.Database)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
index:
  type: mysql
  host: from-file
  port: 3307
facets:
  max_values: 10
`)
	t.Setenv("LEAPTABLE_INDEX__HOST", "from-env")
	t.Setenv("LEAPTABLE_FACETS__MAX_VALUES", "20")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--max-facet-values", "30"}))

	cfg, _, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Index.Host)
	assert.Equal(t, 3307, cfg.Index.Port)
	assert.Equal(t, 30, cfg.Facets.MaxValues)
}

func TestLoad_Environment(t *testing.T) {
	path := writeConfig(t, `
index:
  type: mysql
  host: localhost
  database: dev_tables
environments:
  prod:
    index:
      host: prod-db
    lock:
      backend: postgres
      postgres:
        type: postgres
        host: locks
`)

	cfg, src, err := Load(path, nil)
	require.NoError(t, err)
	assert.Empty(t, src.Environment)
	assert.Equal(t, "localhost", cfg.Index.Host)

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--env", "prod", "--index-port", "4000"}))
	cfg, src, err = Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "prod", src.Environment)
	assert.Equal(t, "prod-db", cfg.Index.Host)
	assert.Equal(t, "dev_tables", cfg.Index.Database)
	assert.Equal(t, 4000, cfg.Index.Port)
	assert.Equal(t, LockBackendPostgres, cfg.Lock.Backend)
	require.NotNil(t, cfg.Lock.Postgres)
	assert.Equal(t, 5432, cfg.Lock.Postgres.Port)
}

func TestLoad_StateFlagRelativeToWorkingDir(t *testing.T) {
	path := writeConfig(t, "state_path: ignored.db\n")
	wd := t.TempDir()
	t.Chdir(wd)

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--state", "local.db"}))
	cfg, _, err := Load(path, fs)
	require.NoError(t, err)

	want, err := filepath.Abs("local.db")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.StatePath)

	fs = testFlags()
	require.NoError(t, fs.Parse([]string{"--state", ":memory:"}))
	cfg, _, err = Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.StatePath)
}

func TestLoad_FindsConfigUpward(t *testing.T) {
	path := writeConfig(t, "facets:\n  max_values: 7\n")
	nested := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, src, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Facets.MaxValues)
	assert.Equal(t, filepath.Base(path), filepath.Base(src.File))
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("INDEX_PASSWORD", "s3cret")
	path := writeConfig(t, `
index:
  type: postgres
  password: ${INDEX_PASSWORD}
  user: ${UNSET_LEAPTABLE_USER}
`)

	cfg, _, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Index.Password)
	assert.Equal(t, "${UNSET_LEAPTABLE_USER}", cfg.Index.User)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{
			name:      "unknown adapter",
			content:   "index:\n  type: oracle\n",
			errSubstr: "unknown adapter type",
		},
		{
			name:      "missing adapter type",
			content:   "index:\n  host: localhost\n",
			errSubstr: "target type is required",
		},
		{
			name:      "unknown lock backend",
			content:   "lock:\n  backend: etcd\n",
			errSubstr: "unknown lock backend",
		},
		{
			name:      "postgres locks without connection",
			content:   "lock:\n  backend: postgres\n",
			errSubstr: "lock.postgres is required",
		},
		{
			name:      "unknown output",
			content:   "output: xml\n",
			errSubstr: "unknown output format",
		},
		{
			name:      "malformed yaml",
			content:   "index: [",
			errSubstr: "error reading config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestTargetConfig_AdapterConfigNil(t *testing.T) {
	var tc *TargetConfig
	assert.Empty(t, tc.AdapterConfig().Type)
}
