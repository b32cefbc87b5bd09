package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"themesync/internal/model"
	"themesync/internal/themesync"
)

const defaultOperationLimit = 50

// APIError represents an error response.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// syncRequest is the optional body of the sync endpoints.
type syncRequest struct {
	Summary string `json:"summary"`
}

type checkResponse struct {
	Theme            string `json:"theme"`
	HasUpdates       bool   `json:"has_updates"`
	DirectoryMissing bool   `json:"directory_missing,omitempty"`
}

type activateResponse struct {
	Theme  string                     `json:"theme"`
	Result themesync.ActivationResult `json:"result"`
}

// getPathParam extracts and URL-decodes a path parameter from the request.
func getPathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, APIError{Error: http.StatusText(status), Message: message})
}

// statusFor maps the service's error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, themesync.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, themesync.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, themesync.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the matching status. Server errors are logged and
// their detail withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

// record runs a mutating handler body inside an operation log entry.
func (s *Server) record(r *http.Request, operation string, params map[string]string, fn func() error) error {
	actor := strings.TrimSpace(r.Header.Get(ActorHeader))
	if actor == "" {
		return fmt.Errorf("%w: %s header is required", themesync.ErrValidation, ActorHeader)
	}
	if s.ops == nil {
		return fn()
	}

	encoded, _ := json.Marshal(params)
	op, err := s.ops.CreateOperation(r.Context(), operation, string(encoded), actor)
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}

	runErr := fn()
	status := "success"
	if runErr != nil {
		status = "error"
	}
	if err := s.ops.FinishOperation(r.Context(), op.ID, status); err != nil {
		s.logger.Warn("finishing operation", "id", op.ID, "error", err)
	}
	return runErr
}

// decodeSyncRequest reads an optional JSON body.
func decodeSyncRequest(r *http.Request) (syncRequest, error) {
	var req syncRequest
	if r.Body == nil {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("%w: invalid request body: %v", themesync.ErrValidation, err)
	}
	return req, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	limit := defaultOperationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	if s.ops == nil {
		respondJSON(w, http.StatusOK, []*model.Operation{})
		return
	}

	ops, err := s.ops.ListOperations(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ops == nil {
		ops = []*model.Operation{}
	}
	respondJSON(w, http.StatusOK, ops)
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := s.svc.Themes(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if themes == nil {
		themes = []*model.Theme{}
	}
	respondJSON(w, http.StatusOK, themes)
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.svc.Theme(r.Context(), getPathParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, theme)
}

func (s *Server) handleActiveTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.svc.ActiveTheme(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, theme)
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSyncRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var reports []*themesync.SyncReport
	err = s.record(r, "SyncAll", map[string]string{"summary": req.Summary}, func() error {
		var err error
		reports, err = s.svc.SyncAll(r.Context(), themesync.SyncOptions{
			Actor:   r.Header.Get(ActorHeader),
			Summary: req.Summary,
		})
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if reports == nil {
		reports = []*themesync.SyncReport{}
	}
	respondJSON(w, http.StatusOK, reports)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	name := getPathParam(r, "name")
	req, err := decodeSyncRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var report *themesync.SyncReport
	err = s.record(r, "Sync", map[string]string{"theme": name, "summary": req.Summary}, func() error {
		var err error
		report, err = s.svc.Sync(r.Context(), name, themesync.SyncOptions{
			Actor:   r.Header.Get(ActorHeader),
			Summary: req.Summary,
		})
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	name := getPathParam(r, "name")
	report, err := s.svc.Drift(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkResponse{
		Theme:            name,
		HasUpdates:       report.HasDrifted(),
		DirectoryMissing: report.DirectoryMissing,
	})
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Drift(r.Context(), getPathParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	name := getPathParam(r, "name")

	var result themesync.ActivationResult
	err := s.record(r, "Activate", map[string]string{"theme": name}, func() error {
		var err error
		result, err = s.svc.Activate(r.Context(), name, r.Header.Get(ActorHeader))
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, activateResponse{Theme: name, Result: result})
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.svc.ThemeVersions(r.Context(), getPathParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if versions == nil {
		versions = []*model.ThemeVersion{}
	}
	respondJSON(w, http.StatusOK, versions)
}

func (s *Server) handleBatchFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.BatchFiles(r.Context(), getPathParam(r, "name"), getPathParam(r, "versionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if files == nil {
		files = []*model.ThemeFileVersion{}
	}
	respondJSON(w, http.StatusOK, files)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	s.promote(w, r, "Publish", s.svc.Publish)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.promote(w, r, "Preview", s.svc.Preview)
}

type promoteFunc func(ctx context.Context, name, versionID, actor string) (*model.ThemeVersion, error)

func (s *Server) promote(w http.ResponseWriter, r *http.Request, operation string, fn promoteFunc) {
	name := getPathParam(r, "name")
	versionID := getPathParam(r, "versionID")

	var version *model.ThemeVersion
	err := s.record(r, operation, map[string]string{"theme": name, "version": versionID}, func() error {
		var err error
		version, err = fn(r.Context(), name, versionID, r.Header.Get(ActorHeader))
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, version)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.svc.Tree(r.Context(), getPathParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

// handleReadFile returns raw file content. ?version=N selects a version.
func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	name := getPathParam(r, "name")
	path := getPathParam(r, "*")

	var content []byte
	var err error
	if raw := r.URL.Query().Get("version"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid version")
			return
		}
		content, err = s.svc.ReadVersion(r.Context(), name, path, n)
	} else {
		content, err = s.svc.Read(r.Context(), name, path)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondContent(w, content)
}

func (s *Server) handleReadActive(w http.ResponseWriter, r *http.Request) {
	content, err := s.svc.ReadActive(r.Context(), getPathParam(r, "*"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondContent(w, content)
}

func (s *Server) handleFileHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.FileHistory(r.Context(), getPathParam(r, "name"), getPathParam(r, "*"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func respondContent(w http.ResponseWriter, content []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
