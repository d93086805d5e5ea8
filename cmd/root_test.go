package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visorlab/visor/internal/conf"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, configFile string, args ...string) (string, error) {
	t.Helper()

	root := RootCommand(conf.DefaultSettings())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configFile}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// Commands share the global viper instance, so this test is not parallel.
func TestCommands(t *testing.T) {
	dir := t.TempDir()
	configFile := writeFile(t, dir, "config.yaml", `
database:
  type: sqlite
  sqlite:
    path: `+filepath.Join(dir, "visor.db")+`
images:
  path: `+filepath.Join(dir, "images")+`
logging:
  default_level: error
  console:
    enabled: false
`)

	_, err := run(t, configFile, "category", "add", "Mineral", "Rock")
	require.NoError(t, err)
	out, err := run(t, configFile, "category", "list")
	require.NoError(t, err)
	assert.Equal(t, "Mineral\nRock\n", out)

	filters := writeFile(t, dir, "cam.yaml", `
short_name: CAM
name: Test camera
camera: true
wavelengths: [400, 450, 500, 550, 600]
filters:
  - name: L1
    center: 450
    responsivity: [0, 1, 0, 0, 0]
  - name: R1
    center: 452
    responsivity: [0, 1, 0.5, 0, 0]
`)
	out, err = run(t, configFile, "filterset", "import", filters)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported CAM")

	sheet := writeFile(t, dir, "olivine.csv",
		"Sample ID,A1\nDatabase of Origin,RELAB\nSample Type,Mineral\nWavelength\n400,0.1\n500,0.2\n600,0.3\n")
	out, err = run(t, configFile, "ingest", sheet)
	require.NoError(t, err, out)
	assert.Contains(t, out, "all_succeeded")
	assert.Contains(t, out, "stored  A1")

	out, err = run(t, configFile, "ingest", sheet)
	require.Error(t, err)
	assert.Contains(t, out, "identical spectrum")

	out, err = run(t, configFile, "simulate", "A1")
	require.NoError(t, err)
	assert.Contains(t, out, "L1_R1")

	out, err = run(t, configFile, "origin", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "RELAB")

	_, err = run(t, configFile, "origin", "release", "RELAB")
	require.NoError(t, err)

	out, err = run(t, configFile, "resimulate")
	require.NoError(t, err)
	assert.Contains(t, out, "1 records")
}
