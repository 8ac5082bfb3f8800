package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"emotrack/internal/api"
	"emotrack/internal/results"
	"emotrack/internal/services"
)

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		StartedAt:      status.StartedAt,
		ActiveSessions: status.ActiveSessions,
		DatabasePath:   status.DatabasePath,
		LockFilePath:   status.LockFilePath,
		Model:          api.FromModelMetadata(status.Model),
	}
	if status.Stats != nil {
		stats := api.FromStats(*status.Stats)
		payload.Stats = &stats
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleModel(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FromModelMetadata(s.daemon.ModelMetadata()))
}

func (s *apiServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeValidation(w, r, "request body must be JSON")
			return
		}
	}
	info := s.daemon.CreateSession(r.Context(), req.UserID, req.Channel)
	s.writeJSON(w, http.StatusCreated, api.CreateSessionResponse{
		SessionID: info.SessionID,
		UserID:    info.UserID,
		Channel:   info.Channel,
		StartedAt: info.StartedAt,
	})
}

func (s *apiServer) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{
		Sessions: api.FromSessionInfos(s.daemon.Sessions()),
	})
}

func (s *apiServer) handleSessionFrame(w http.ResponseWriter, r *http.Request) {
	s.serveFrame(w, r, chi.URLParam(r, "id"))
}

// handleAnalyzeFrame previews one frame; an optional session_id form field
// also folds it into that live session.
func (s *apiServer) handleAnalyzeFrame(w http.ResponseWriter, r *http.Request) {
	s.serveFrame(w, r, "")
}

func (s *apiServer) serveFrame(w http.ResponseWriter, r *http.Request, sessionID string) {
	data, _, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.FormValue("session_id"))
	}
	ctx := services.WithSessionID(r.Context(), sessionID)
	outcome, err := s.daemon.IngestFrame(ctx, sessionID, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.FrameResponse{FrameAnalysis: api.FromFrameSummary(outcome.Summary)}
	if outcome.Session != nil {
		resp.Session = api.FromIngestResult(*outcome.Session)
	}
	if outcome.Warning != nil {
		warning := api.FromError(outcome.Warning)
		resp.Warning = &warning
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := services.WithSessionID(r.Context(), id)
	summary, records, err := s.daemon.StopSession(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStop(summary, records))
}

func (s *apiServer) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, ok := s.daemon.CachedSummary(id)
	if !ok {
		s.writeError(w, r, services.Wrap(services.ErrSessionNotFound, "api", "session summary", id, nil))
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSessionSummary(summary))
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.daemon.cfg.MaxUploadBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeError(w, r, formError(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeValidation(w, r, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	userID, err := parseUserID(r.FormValue("user_id"))
	if err != nil {
		s.writeValidation(w, r, "user_id must be an integer")
		return
	}
	ctx := services.WithUserID(r.Context(), userID)
	outcome, err := s.daemon.AnalyzeUpload(ctx, UploadRequest{
		MediaType:  r.FormValue("media_type"),
		SourceType: r.FormValue("source_type"),
		Channel:    r.FormValue("channel"),
		UserID:     userID,
		Filename:   header.Filename,
		Body:       file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromUpload(outcome.BatchID, outcome.Summary, outcome.Records))
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.daemon.cfg.MaxUploadBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeError(w, r, formError(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeValidation(w, r, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	mediaType := r.FormValue("media_type")
	summary, err := s.daemon.Preview(r.Context(), mediaType, header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	normalized, _ := normalizeMediaType(mediaType)
	s.writeJSON(w, http.StatusOK, api.FromPreview(normalized, summary))
}

func (s *apiServer) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := results.Filter{
		MediaType: normalizeFilter(query.Get("media_type")),
		Source:    normalizeFilter(firstNonEmpty(query.Get("source"), query.Get("source_type"))),
		Emotion:   strings.TrimSpace(query.Get("emotion")),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeValidation(w, r, "limit must be numeric")
			return
		}
		filter.Limit = max(limit, 1)
	}
	if raw := strings.TrimSpace(query.Get("user_id")); raw != "" {
		userID, err := parseUserID(raw)
		if err != nil {
			s.writeValidation(w, r, "user_id must be an integer")
			return
		}
		filter.UserID = &userID
	}

	ctx := r.Context()
	store := s.daemon.store
	records, err := store.List(ctx, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	emotionStats, err := store.Stats(ctx, results.Filter{UserID: filter.UserID, MediaType: filter.MediaType, Source: filter.Source})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sourceStats, err := store.Stats(ctx, results.Filter{UserID: filter.UserID, MediaType: filter.MediaType})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.AnalysisListResponse{
		Items: api.FromRecords(records),
		Filters: api.AnalysisFilters{
			MediaType:         filter.MediaType,
			Source:            filter.Source,
			Emotion:           filter.Emotion,
			Limit:             filter.PageSize(),
			AvailableEmotions: emotionStats.Labels(),
			AvailableSources:  api.SortedKeys(sourceStats.BySource),
		},
	})
}

func (s *apiServer) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeValidation(w, r, "invalid analysis id")
		return
	}
	rec, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rec == nil {
		s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "analysis not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, api.AnalysisResponse{Analysis: api.FromRecord(*rec)})
}

func (s *apiServer) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeValidation(w, r, "invalid analysis id")
		return
	}
	removed, err := s.daemon.DeleteAnalysis(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !removed {
		s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "analysis not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMedia serves stored files referenced by a persisted analysis, plus
// live-session snapshots.
func (s *apiServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
	if rel == "" {
		http.NotFound(w, r)
		return
	}
	allowed := strings.HasPrefix(rel, s.daemon.media.Layout().EmotionSubdir+"/")
	if !allowed {
		referenced, err := s.daemon.store.HasPath(r.Context(), rel)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		allowed = referenced
	}
	if !allowed {
		http.NotFound(w, r)
		return
	}
	abs, err := s.daemon.media.Resolve(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// readUpload extracts the multipart "file" field, bounded by the upload limit.
func (s *apiServer) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, *multipart.FileHeader, error) {
	limit := s.daemon.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, formError(err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "api", "read upload", "multipart field 'file' is required", nil)
	}
	defer file.Close()
	data, err := readLimited(file, limit)
	if err != nil {
		return nil, nil, err
	}
	return data, header, nil
}

func formError(err error) error {
	return services.Wrap(services.ErrValidation, "api", "parse form", "expected multipart/form-data", err)
}

func parseUserID(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

func normalizeFilter(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "all" {
		return ""
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
