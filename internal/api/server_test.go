package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/config"
	"github.com/JakeFAU/iconshelf/internal/dispatcher"
	"github.com/JakeFAU/iconshelf/internal/export"
	localfetcher "github.com/JakeFAU/iconshelf/internal/fetcher/local"
	"github.com/JakeFAU/iconshelf/internal/icon"
	idgen "github.com/JakeFAU/iconshelf/internal/id/uuid"
	"github.com/JakeFAU/iconshelf/internal/index"
	memqueue "github.com/JakeFAU/iconshelf/internal/queue/memory"
	"github.com/JakeFAU/iconshelf/internal/status"
	"github.com/JakeFAU/iconshelf/internal/storage/memory"
	"github.com/JakeFAU/iconshelf/internal/worker"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="18" height="18" viewBox="0 0 18 18">` +
	`<rect width="18" height="18" fill="#0078d4"/></svg>`

type testEnv struct {
	server *Server
	board  *status.Board
	jobs   *memory.JobStore
	blobs  *memory.BlobStore
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5},
		Export: config.ExportConfig{FileName: export.DefaultLibraryName},
	}
}

func testLibrary() icon.Library {
	return icon.Library{
		Icons: []icon.Record{
			icon.NewRecord("compute", "10021-icon-service-Virtual-Machine.svg"),
			icon.NewRecord("compute", "10022-icon-service-Disks.svg"),
			icon.NewRecord("networking", "10061-icon-service-Load-Balancers.svg"),
			icon.NewRecord("networking", "10062-icon-service-Broken.svg"),
		},
		Categories: []string{"compute", "networking"},
	}
}

// newTestEnv wires the real exporters and job pipeline over an in-memory icon
// tree. The "Broken" icon has no file on disk.
func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	fsys := afero.NewMemMapFs()
	lib := testLibrary()
	for _, rec := range lib.Icons[:3] {
		require.NoError(t, afero.WriteFile(fsys, "root/"+rec.Category+"/"+rec.FileName, []byte(testSVG), 0o644))
	}
	fetcher := localfetcher.New(fsys, "root")
	board := status.NewBoard(status.DefaultConfig(), nil)

	jobs := memory.NewJobStore(nil)
	blobs := memory.NewBlobStore()
	queue := memqueue.NewQueue(4)
	drawio := export.NewDrawIO(fetcher, nil, board, export.DrawIOConfig{}, zap.NewNop())
	workers := []*worker.Worker{worker.New(queue, jobs, blobs, drawio, zap.NewNop())}
	d := dispatcher.New(queue, jobs, idgen.NewUUIDGenerator(), workers)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	server := NewServer(Deps{
		Catalog:   index.StaticCatalog(lib),
		Fetcher:   fetcher,
		Single:    export.NewSingle(fetcher, board, export.SingleConfig{PNGSize: 32}, zap.NewNop()),
		Jobs:      jobs,
		Submitter: d,
		Artifacts: blobs,
		Status:    board,
	}, cfg, zap.NewNop())

	return &testEnv{server: server, board: board, jobs: jobs, blobs: blobs}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServerHealthAndReadiness(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	require.InDelta(t, 4, body["icons"], 0)
}

func TestServerReadinessWithoutCatalog(t *testing.T) {
	t.Parallel()

	s := NewServer(Deps{}, testConfig(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerRequestIDPropagates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/healthz", nil, "X-Request-ID", "req-42")
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestServerAPIKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "s3cret"}
	env := newTestEnv(t, cfg)

	rec := env.do(t, http.MethodGet, "/v1/icons", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/icons", nil, "X-API-Key", "wrong")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/icons", nil, "X-API-Key", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/icons?api_key=s3cret", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Health probes stay open.
	rec = env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServerStatusEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[status.Message](t, rec).Text)

	env.board.Post(status.KindSuccess, "Downloaded: Disks.svg")
	rec = env.do(t, http.MethodGet, "/v1/status", nil)
	msg := decode[status.Message](t, rec)
	require.Equal(t, "Downloaded: Disks.svg", msg.Text)
	require.Equal(t, status.KindSuccess, msg.Kind)
	require.WithinDuration(t, time.Now().Add(3*time.Second), msg.ExpiresAt, time.Second)
}

func TestServerServesUI(t *testing.T) {
	t.Parallel()

	ui := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>shelf</html>"))
	})
	s := NewServer(Deps{Catalog: index.StaticCatalog(testLibrary()), UI: ui}, testConfig(), zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "shelf")
}

func TestServerRecoversPanics(t *testing.T) {
	t.Parallel()

	ui := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	s := NewServer(Deps{UI: ui}, testConfig(), zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
