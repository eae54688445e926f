package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/intellisoft-ke/findams/internal/batch"
	"github.com/intellisoft-ke/findams/internal/logging"
)

// MaxUploadSize is the maximum allowed file size (100MB).
const MaxUploadSize = 100 * 1024 * 1024

// uploadField is the multipart form field carrying the WHONET export.
const uploadField = "fileContent"

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleParseFile accepts a WHONET export upload, stores it in the
// inbound directory and runs the import synchronously. The response is
// the batch summary for the processed file.
func (s *Server) handleParseFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.respondError(w, r, errors.New("missing file field "+uploadField), http.StatusBadRequest)
		return
	}
	defer file.Close()

	log := logging.WithFields(r.Context(), "file", header.Filename)
	log.Info("upload received", "size", header.Size)

	path, err := s.service.SaveUpload(header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	summary, err := s.service.ImportFile(r.Context(), path)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	log.Info("import finished", "batch", summary.BatchNo, "status", summary.Status)
	s.respondJSON(w, http.StatusOK, summary)
}

// handleBatches returns the recorded batch summary history.
func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.Batches(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	if batches == nil {
		batches = []batch.Summary{}
	}
	s.respondJSON(w, http.StatusOK, batches)
}

// respondJSON writes a JSON response body.
func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

// ErrorResponse is the JSON structure for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError logs the technical error with its request id and
// returns a JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	s.log.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"request_id", middleware.GetReqID(r.Context()),
	)
	s.respondJSON(w, status, ErrorResponse{Error: err.Error()})
}
