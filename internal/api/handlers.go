package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wstszx/LicStats/internal/license"
	"github.com/wstszx/LicStats/internal/metrics"
	"github.com/wstszx/LicStats/internal/snapshot"
)

// LicensesResponse is the latest snapshot.
type LicensesResponse struct {
	Timestamp  string            `json:"timestamp"`
	Filename   string            `json:"filename"`
	Licenses   []license.Feature `json:"licenses"`
	RawContent string            `json:"raw_content"`
}

// LogsResponse lists the snapshot files of a window.
type LogsResponse struct {
	Filter snapshot.Window `json:"filter"`
	Logs   []snapshot.Info `json:"logs"`
	Total  int             `json:"total"`
}

// CollectResponse reports a manual collection.
type CollectResponse struct {
	Status   string `json:"status"`
	Snapshot string `json:"snapshot"`
	Features int    `json:"features"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.monitor.Status(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get status")
		writeError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	records, err := s.monitor.Health(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list health records")
		writeError(w, http.StatusInternalServerError, "Failed to list health records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"health_status": records,
		"total":         len(records),
	})
}

func (s *Server) handleLicenses(w http.ResponseWriter, r *http.Request) {
	doc, err := s.monitor.Latest(r.Context())
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LicensesResponse{
		Timestamp:  doc.Info.CapturedAt.Format("2006-01-02T15:04:05"),
		Filename:   doc.Info.Name,
		Licenses:   doc.Snapshot.Features,
		RawContent: doc.Raw,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	window, ok := s.window(w, r, "filter")
	if !ok {
		return
	}
	logs, err := s.monitor.Logs(r.Context(), window)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list snapshots")
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}
	if logs == nil {
		logs = []snapshot.Info{}
	}
	writeJSON(w, http.StatusOK, LogsResponse{Filter: window, Logs: logs, Total: len(logs)})
}

func (s *Server) handleLogContent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	doc, err := s.monitor.Snapshot(r.Context(), name)
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename":  doc.Info.Name,
		"timestamp": doc.Info.CapturedAt,
		"content":   doc.Raw,
		"licenses":  doc.Snapshot.Features,
	})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		metrics.CollectThrottled.Inc()
		writeError(w, http.StatusTooManyRequests, "Collection requested too often, try again later")
		return
	}

	// A client disconnect must not abort a collection half way.
	result, err := s.collector.Collect(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CollectResponse{
		Status:   "success",
		Snapshot: result.Snapshot.Name,
		Features: result.Features,
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	window, ok := s.window(w, r, "window")
	if !ok {
		return
	}
	view, err := s.monitor.Users(r.Context(), window)
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	window, ok := s.window(w, r, "window")
	if !ok {
		return
	}
	view, err := s.monitor.Modules(r.Context(), window)
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	window, ok := s.window(w, r, "window")
	if !ok {
		return
	}
	view, err := s.monitor.Aggregate(r.Context(), window)
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	window, ok := s.window(w, r, "window")
	if !ok {
		return
	}
	view, err := s.monitor.History(r.Context(), window)
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// window parses a window query parameter, writing 400 on failure.
func (s *Server) window(w http.ResponseWriter, r *http.Request, param string) (snapshot.Window, bool) {
	window, err := snapshot.ParseWindow(r.URL.Query().Get(param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+param+": expected latest, week or month")
		return "", false
	}
	return window, true
}

// writeLoadError maps snapshot errors to HTTP status codes.
func (s *Server) writeLoadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, snapshot.ErrNoData):
		writeError(w, http.StatusNotFound, "No data available")
	case errors.Is(err, snapshot.ErrNotFound):
		writeError(w, http.StatusNotFound, "Snapshot not found")
	case errors.Is(err, snapshot.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "Invalid snapshot name")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "Request canceled")
	default:
		s.logger.Error().Err(err).Msg("Failed to load snapshot data")
		writeError(w, http.StatusInternalServerError, "Failed to load snapshot data")
	}
}
