package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/export"
	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/metrics"
)

type iconsResponse struct {
	Icons   []icon.Record `json:"icons"`
	Total   int           `json:"total"`
	Showing int           `json:"showing"`
}

func (s *Server) listIcons(w http.ResponseWriter, r *http.Request) {
	lib := s.deps.Catalog.Library()
	q := r.URL.Query()
	visible := icon.Filter(lib.Icons, q.Get("q"), q.Get("category"))
	writeJSON(w, http.StatusOK, iconsResponse{
		Icons:   visible,
		Total:   len(lib.Icons),
		Showing: len(visible),
	})
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	categories := s.deps.Catalog.Library().Categories
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	var (
		category string
		err      error
	)
	if chi.URLParam(r, "category") != "" {
		category, err = pathParam(r, "category")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	file, err := pathParam(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.deps.Fetcher.FetchAsset(r.Context(), icon.NewRecord(category, file))
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.MIMESVG)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("asset write failed", zap.Error(err))
	}
}

func (s *Server) downloadIcon(w http.ResponseWriter, r *http.Request) {
	if s.deps.Single == nil {
		writeError(w, http.StatusServiceUnavailable, "single export unavailable")
		return
	}
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, ok := s.deps.Catalog.Library().Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "icon not found")
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	transparent := false
	if raw := r.URL.Query().Get("transparent"); raw != "" {
		transparent, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "transparent must be a boolean")
			return
		}
	}

	dl := &responseDownloader{w: w}
	err = s.deps.Single.Export(r.Context(), rec, export.Options{Format: format, TransparentBackground: transparent}, dl)
	if err != nil {
		metrics.ObserveSingleExport(string(format), metrics.OutcomeError)
		if dl.written {
			return
		}
		var exportErr *icon.ExportError
		if errors.As(err, &exportErr) {
			writeError(w, http.StatusInternalServerError, "Download failed")
			return
		}
		s.writeFetchError(w, err)
		return
	}
	metrics.ObserveSingleExport(string(format), metrics.OutcomeOK)
}

func (s *Server) writeFetchError(w http.ResponseWriter, err error) {
	var fetchErr *icon.FetchError
	switch {
	case errors.Is(err, icon.ErrNotFound):
		writeError(w, http.StatusNotFound, "icon asset not found")
	case errors.As(err, &fetchErr) && fetchErr.StatusCode == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "icon asset not found")
	default:
		s.logger.Warn("asset fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "icon asset unavailable")
	}
}

func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	value, err := url.PathUnescape(raw)
	if err != nil || value == "" {
		return "", fmt.Errorf("invalid %s", name)
	}
	return value, nil
}
