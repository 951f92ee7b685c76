package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/export"
	"github.com/JakeFAU/iconshelf/internal/exportjob"
	"github.com/JakeFAU/iconshelf/internal/icon"
)

const maxExportRequestBytes = 64 << 10

type exportRequest struct {
	Query    string `json:"q"`
	Category string `json:"category"`
}

// submitExport queues a draw.io library export of every icon currently
// matching the request's filter.
func (s *Server) submitExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Submitter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports unavailable")
		return
	}
	var req exportRequest
	body := http.MaxBytesReader(w, r.Body, maxExportRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	visible := icon.Filter(s.deps.Catalog.Library().Icons, req.Query, req.Category)
	job, err := s.deps.Submitter.Submit(r.Context(), req.Query, req.Category, visible)
	if err != nil {
		s.logger.Error("export submit failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, export.FailureMessage)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"export_id": job.ID.String(),
		"total":     len(visible),
	})
}

func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": job})
}

func (s *Server) downloadExport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if job.Status != exportjob.StatusSucceeded {
		writeError(w, http.StatusConflict, "export is "+string(job.Status))
		return
	}
	if s.deps.Artifacts == nil {
		writeError(w, http.StatusServiceUnavailable, "artifact store unavailable")
		return
	}
	rc, err := s.deps.Artifacts.GetObject(r.Context(), job.ArtifactPath)
	if err != nil {
		if errors.Is(err, icon.ErrNotFound) {
			writeError(w, http.StatusGone, "export artifact no longer available")
			return
		}
		s.logger.Error("open export artifact failed", zap.Stringer("export_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open export artifact")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", export.MIMEXML)
	w.Header().Set("Content-Disposition", attachment(job.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("export artifact write failed", zap.Stringer("export_id", job.ID), zap.Error(err))
	}
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (exportjob.Job, bool) {
	if s.deps.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "exports unavailable")
		return exportjob.Job{}, false
	}
	raw, err := pathParam(r, "export_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return exportjob.Job{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid export id")
		return exportjob.Job{}, false
	}
	job, err := s.deps.Jobs.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, exportjob.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "export not found")
			return exportjob.Job{}, false
		}
		writeError(w, http.StatusInternalServerError, "failed to load export")
		return exportjob.Job{}, false
	}
	return job, true
}
