package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/config"
	collyfetcher "github.com/JakeFAU/iconshelf/internal/fetcher/colly"
	localfetcher "github.com/JakeFAU/iconshelf/internal/fetcher/local"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Index.SourceDir = "/srv/icons"
	cfg.Index.IconsFile = "/srv/public/icons.json"
	cfg.Index.CategoriesFile = "/srv/public/categories.json"
	cfg.Assets.RootDir = "/srv/icons"
	cfg.Assets.BaseURL = ""
	cfg.Storage.Backend = "memory"
	return cfg
}

func seedIcons(t *testing.T, fsys afero.Fs) {
	t.Helper()
	for _, p := range []string{
		"/srv/icons/compute/10021-icon-service-Virtual-Machine.svg",
		"/srv/icons/networking/10061-icon-service-Load-Balancers.svg",
	} {
		require.NoError(t, afero.WriteFile(fsys, p, []byte(`<svg viewBox="0 0 18 18"/>`), 0o644))
	}
}

func TestBuildCreatesMissingIndex(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	seedIcons(t, fsys)
	app, err := build(context.Background(), testConfig(t), zap.NewNop(), fsys, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	exists, err := afero.Exists(fsys, "/srv/public/icons.json")
	require.NoError(t, err)
	require.True(t, exists)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/icons?category=compute", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Total   int `json:"total"`
		Showing int `json:"showing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Total)
	require.Equal(t, 1, body.Showing)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Azure Icon Library")
}

func TestBuildFailsOnCorruptIndex(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/srv/public/icons.json", []byte("{"), 0o644))
	_, err := build(context.Background(), testConfig(t), zap.NewNop(), fsys, prometheus.NewRegistry())
	require.ErrorContains(t, err, "load icon index")
}

func TestBuildFailsWithoutIconTree(t *testing.T) {
	t.Parallel()

	_, err := build(context.Background(), testConfig(t), zap.NewNop(), afero.NewMemMapFs(), prometheus.NewRegistry())
	require.ErrorContains(t, err, "build icon index")
}

func TestNewFetcherSelection(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	f, err := NewFetcher(cfg, afero.NewMemMapFs(), zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &localfetcher.Fetcher{}, f)

	cfg.Assets.BaseURL = "https://cdn.example.com/static"
	cfg.Assets.RPS = 5
	f, err = NewFetcher(cfg, afero.NewMemMapFs(), zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &collyfetcher.Fetcher{}, f)

	cfg.Assets.BaseURL = "relative/path"
	_, err = NewFetcher(cfg, afero.NewMemMapFs(), zap.NewNop())
	require.ErrorContains(t, err, "init fetcher")
}

func TestNewProgressHubRegistersOnce(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	hub, err := NewProgressHub(testConfig(t), reg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, hub.Close(context.Background()))

	_, err = NewProgressHub(testConfig(t), reg, zap.NewNop())
	require.ErrorContains(t, err, "progress sink")
}

func TestBuildRejectsBadJobStoreDSN(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	seedIcons(t, fsys)
	cfg := testConfig(t)
	cfg.Jobs.Backend = "postgres"
	cfg.Jobs.DSN = "postgres://bad host:notaport/db"
	_, err := build(context.Background(), cfg, zap.NewNop(), fsys, prometheus.NewRegistry())
	require.ErrorContains(t, err, "job store")
}
