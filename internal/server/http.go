package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/export"
	"github.com/muurk/cellwatch/internal/logging"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps manager errors to HTTP status codes.
func statusFor(err error) int {
	var (
		devErr     *capture.DeviceError
		storageErr *capture.StorageError
	)
	switch {
	case errors.Is(err, capture.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusConflict
	case errors.As(err, &devErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &storageErr):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Status())
}

func (s *Server) liveReportHandler(w http.ResponseWriter, r *http.Request) {
	live := s.manager.Live()
	if live == nil {
		writeError(w, http.StatusNotFound, capture.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, live.Report())
}

func (s *Server) capturesHandler(w http.ResponseWriter, r *http.Request) {
	infos, err := s.manager.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) captureReportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.manager.Report(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) capturePcapHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	path, err := s.manager.Path(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.tcpdump.pcap")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".pcap"))
	if _, err := export.Export(r.Context(), capture.File{Path: path}, w); err != nil {
		// headers are gone; the truncated body is all the client gets
		logging.Warn("pcap export failed", zap.String("capture", name), zap.Error(err))
	}
}

// startResponse answers POST /api/capture/start.
type startResponse struct {
	SessionID string         `json:"session_id"`
	Status    capture.Status `json:"status"`
	Start     time.Time      `json:"start"`
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	// the session outlives the request
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.config.StartTimeout)
	defer cancel()

	sess, err := s.manager.StartLive(ctx)
	if err != nil {
		logging.Warn("Failed to start live capture", zap.Error(err))
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{
		SessionID: sess.ID(),
		Status:    sess.Status(),
		Start:     sess.Metadata().Start,
	})
}

func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.manager.StopLive(r.Context())
	if err != nil && !endedBySession(err) {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// endedBySession reports errors that ended the session on its own. Stop
// still returns its final report.
func endedBySession(err error) bool {
	return errors.As(err, new(*capture.DeviceError)) || errors.As(err, new(*capture.StorageError))
}

// statusRecorder captures the status code for request logging. It passes
// Hijack through so WebSocket upgrades still work behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// running returns the live session while it is capturing.
func (s *Server) running() (*capture.Session, bool) {
	live := s.manager.Live()
	if live == nil || live.Status() != capture.StatusRunning {
		return nil, false
	}
	return live, true
}
