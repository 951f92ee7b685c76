package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/iconshelf/internal/icon"
)

const iconSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="18" height="18"><rect width="18" height="18"/></svg>`

const localStorage = `
storage:
  backend: local
  base_dir: %[1]s/store
`

// writeWorkspace lays out a small icon tree and a config file. storageYAML is a
// format string receiving the workspace dir; it defaults to a local store.
func writeWorkspace(t *testing.T, storageYAML ...string) (dir, cfgPath string) {
	t.Helper()
	storageSection := localStorage
	if len(storageYAML) > 0 {
		storageSection = storageYAML[0]
	}
	dir = t.TempDir()
	for _, p := range []string{
		"icons/compute/10021-icon-service-Virtual-Machine.svg",
		"icons/compute/10022-icon-service-Disks.svg",
		"icons/networking/10061-icon-service-Load-Balancers.svg",
	} {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(iconSVG), 0o644))
	}
	cfgPath = filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`
index:
  source_dir: %[1]s/icons
  icons_file: %[1]s/public/icons.json
  categories_file: %[1]s/public/categories.json
assets:
  root_dir: %[1]s/icons
export:
  batch_pause_ms: 0
logging:
  development: false
  level: error
`+storageSection, filepath.ToSlash(dir))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return dir, cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIndexCommand(t *testing.T) {
	dir, cfgPath := writeWorkspace(t)

	out, err := run(t, "--config", cfgPath, "index")
	require.NoError(t, err)
	require.Contains(t, out, "Indexed 3 icons in 2 categories")

	data, err := os.ReadFile(filepath.Join(dir, "public", "categories.json"))
	require.NoError(t, err)
	require.JSONEq(t, `["compute","networking"]`, string(data))
}

func TestExportDrawIOToDirectory(t *testing.T) {
	dir, cfgPath := writeWorkspace(t)
	_, err := run(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	outDir := filepath.Join(dir, "dist")
	out, err := run(t, "--config", cfgPath, "export", "--category", "compute", "--out", outDir)
	require.NoError(t, err)
	require.Contains(t, out, "Preparing Draw.io export...")
	require.Contains(t, out, "Processing icons... 2/2")
	require.Contains(t, out, "Draw.io library exported! (2 icons)")

	data, err := os.ReadFile(filepath.Join(outDir, "azure-icons-drawio.xml"))
	require.NoError(t, err)
	doc := string(data)
	require.True(t, strings.HasPrefix(doc, "<mxlibrary>["))
	require.True(t, strings.HasSuffix(doc, "]</mxlibrary>"))
	require.Contains(t, doc, `"title": "Disks"`)
	require.NotContains(t, doc, "Load Balancers")
}

func TestExportDrawIOToArtifactStore(t *testing.T) {
	dir, cfgPath := writeWorkspace(t)
	_, err := run(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	_, err = run(t, "--config", cfgPath, "export", "-q", "balancer")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "store", "downloads", "azure-icons-drawio.xml"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"title": "Load Balancers"`)
}

func TestExportDrawIOWithDefaultStorageBackend(t *testing.T) {
	dir, cfgPath := writeWorkspace(t, `
storage:
  base_dir: %[1]s/exports
`)
	_, err := run(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	out, err := run(t, "--config", cfgPath, "export")
	require.NoError(t, err)
	require.Contains(t, out, "Draw.io library exported! (3 icons)")

	target := filepath.Join(dir, "exports", "downloads", "azure-icons-drawio.xml")
	require.Contains(t, out, "Saved to file://"+target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Contains(t, string(data), `"title": "Virtual Machine"`)
}

func TestExportRefusesMemoryStoreWithoutDirectory(t *testing.T) {
	_, cfgPath := writeWorkspace(t, `
storage:
  backend: memory
  base_dir: ""
`)
	_, err := run(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	_, err = run(t, "--config", cfgPath, "export")
	require.ErrorContains(t, err, "pass --out or set storage.base_dir")
}

func TestExportSingleIcon(t *testing.T) {
	dir, cfgPath := writeWorkspace(t)
	_, err := run(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	outDir := filepath.Join(dir, "dist")
	out, err := run(t, "--config", cfgPath, "export", "--format", "svg",
		"--id", "10022-icon-service-Disks", "--out", outDir)
	require.NoError(t, err)
	require.Contains(t, out, "Downloaded: Disks.svg")

	data, err := os.ReadFile(filepath.Join(outDir, "Disks.svg"))
	require.NoError(t, err)
	require.Equal(t, iconSVG, string(data))

	_, err = run(t, "--config", cfgPath, "export", "--format", "png",
		"--id", "10021-icon-service-Virtual-Machine", "--out", outDir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "Virtual-Machine.png"))
	require.NoError(t, err)
}

func TestExportErrors(t *testing.T) {
	dir, cfgPath := writeWorkspace(t)

	_, err := run(t, "--config", cfgPath, "export")
	require.ErrorContains(t, err, "run `iconshelf index` first")

	_, err = run(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	outDir := filepath.Join(dir, "dist")
	_, err = run(t, "--config", cfgPath, "export", "--format", "svg", "--out", outDir)
	require.ErrorContains(t, err, "--id is required")

	_, err = run(t, "--config", cfgPath, "export", "--format", "gif", "--id", "x", "--out", outDir)
	require.ErrorContains(t, err, "unsupported format")

	_, err = run(t, "--config", cfgPath, "export", "--format", "svg", "--id", "nope", "--out", outDir)
	require.ErrorIs(t, err, icon.ErrNotFound)
}

func TestRootRejectsBadConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "index")
	require.ErrorContains(t, err, "failed to initialize application services")
}
