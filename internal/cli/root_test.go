package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptable/pkg/adapters/mysql"
)

func execute(t *testing.T, opts []Option, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(opts...)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRoot_Version(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, nil, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "leaptable "+Version)
}

func TestRoot_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaptable.yaml"), []byte("output: xml\n"), 0600))

	_, err := execute(t, nil, "version")
	require.Error(t, err)
}

func TestRoot_ConfigFlowsToCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaptable.yaml"), []byte("output: json\nstate_path: \":memory:\"\n"), 0600))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	index := mysql.New(nil)
	index.DB = db

	out, err := execute(t, []Option{WithIndexAdapter(index)}, "view", "list")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoot_OutputFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaptable.yaml"), []byte("output: json\n"), 0600))

	out, err := execute(t, nil, "view", "list", "--state", ":memory:", "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "## Views (0 total)")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := execute(t, nil, "completion", shell)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}

	_, err := execute(t, nil, "completion", "tcsh")
	assert.Error(t, err)
}
