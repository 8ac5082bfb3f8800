package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"emotrack/internal/api"
)

// ErrUnavailable reports that no daemon answered at the configured address.
var ErrUnavailable = errors.New("emotrack API unavailable")

// Error is a non-2xx answer from the daemon API.
type Error struct {
	Status    int
	Kind      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Kind != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Kind, msg)
	}
	return fmt.Sprintf("api %d: %s", e.Status, msg)
}

// Client talks to a running daemon over its HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client for bind, which may be a host:port pair or a full URL.
// An empty bind yields ErrUnavailable.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// Follow-mode log fetches block server-side; callers bound requests with ctx.
		http: &http.Client{},
	}, nil
}

// BaseURL returns the daemon root the client targets.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Health probes the unauthenticated liveness endpoint.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.getJSON(ctx, "/api/health", nil, &out)
	return out, err
}

// Status fetches the daemon runtime status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.getJSON(ctx, "/api/status", nil, &out)
	return out, err
}

// Model fetches the label set and model artifact availability.
func (c *Client) Model(ctx context.Context) (api.ModelMetadata, error) {
	var out api.ModelMetadata
	err := c.getJSON(ctx, "/api/model", nil, &out)
	return out, err
}

// Sessions lists the active live sessions.
func (c *Client) Sessions(ctx context.Context) ([]api.SessionInfo, error) {
	var out api.SessionListResponse
	if err := c.getJSON(ctx, "/api/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// StopSession finalizes a live session and returns its summary.
func (c *Client) StopSession(ctx context.Context, sessionID string) (api.StopResponse, error) {
	var out api.StopResponse
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/stop"
	err := c.do(ctx, http.MethodPost, path, nil, nil, "", &out)
	return out, err
}

// AnalysisQuery filters the analysis history.
type AnalysisQuery struct {
	MediaType string
	Source    string
	Emotion   string
	UserID    *int64
	Limit     int
}

// Analyses lists persisted analyses, newest first.
func (c *Client) Analyses(ctx context.Context, q AnalysisQuery) (api.AnalysisListResponse, error) {
	values := url.Values{}
	setIf(values, "media_type", q.MediaType)
	setIf(values, "source", q.Source)
	setIf(values, "emotion", q.Emotion)
	if q.UserID != nil {
		values.Set("user_id", strconv.FormatInt(*q.UserID, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	var out api.AnalysisListResponse
	err := c.getJSON(ctx, "/api/analyses", values, &out)
	return out, err
}

// Analysis fetches one persisted analysis.
func (c *Client) Analysis(ctx context.Context, id int64) (api.Analysis, error) {
	var out api.AnalysisResponse
	err := c.getJSON(ctx, "/api/analyses/"+strconv.FormatInt(id, 10), nil, &out)
	return out.Analysis, err
}

// DeleteAnalysis removes a persisted analysis and any files only it referenced.
func (c *Client) DeleteAnalysis(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/analyses/"+strconv.FormatInt(id, 10), nil, nil, "", nil)
}

// UploadOptions describes a file submitted for analysis.
type UploadOptions struct {
	MediaType  string
	SourceType string
	Channel    string
	UserID     int64
}

// Analyze uploads a local image or video for persisted analysis.
func (c *Client) Analyze(ctx context.Context, path string, opts UploadOptions) (api.AnalyzeResponse, error) {
	fields := map[string]string{
		"media_type":  opts.MediaType,
		"source_type": opts.SourceType,
		"channel":     opts.Channel,
	}
	if opts.UserID != 0 {
		fields["user_id"] = strconv.FormatInt(opts.UserID, 10)
	}
	var out api.AnalyzeResponse
	err := c.upload(ctx, "/api/analyze", path, fields, &out)
	return out, err
}

// Preview analyzes a local file without persisting anything.
func (c *Client) Preview(ctx context.Context, path, mediaType string) (api.PreviewResponse, error) {
	var out api.PreviewResponse
	err := c.upload(ctx, "/api/analyze/preview", path, map[string]string{"media_type": mediaType}, &out)
	return out, err
}

// LogQuery selects daemon log events.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	SessionID string
}

// Logs fetches buffered daemon log events. With Follow set the daemon holds
// the request open until new events arrive or its wait elapses.
func (c *Client) Logs(ctx context.Context, q LogQuery) (api.LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	setIf(values, "component", q.Component)
	setIf(values, "session_id", q.SessionID)
	var out api.LogStreamResponse
	err := c.getJSON(ctx, "/api/logs", values, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) upload(ctx context.Context, path, filePath string, fields map[string]string, out any) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("encode field %s: %w", key, err)
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, &body, writer.FormDataContentType(), out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload api.ErrorResponse
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		apiErr.Kind = payload.Kind
		apiErr.Message = payload.Error
		apiErr.Retryable = payload.Retryable
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}

func setIf(values url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		values.Set(key, value)
	}
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// KindOf returns the error kind reported by the daemon, or "" when err did
// not come from an API error response.
func KindOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}
