package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"emotrack/internal/api"
	"emotrack/internal/apiclient"
	"emotrack/internal/services"
	"emotrack/internal/testsupport"
)

func TestNewEmptyBind(t *testing.T) {
	if _, err := apiclient.New("", ""); !errors.Is(err, apiclient.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewAddsScheme(t *testing.T) {
	client, err := apiclient.New("127.0.0.1:7610", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.BaseURL() != "http://127.0.0.1:7610" {
		t.Fatalf("unexpected base %q", client.BaseURL())
	}
}

func TestLogsBuildsQueryAndSendsToken(t *testing.T) {
	var (
		gotQuery url.Values
		gotAuth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []api.LogEvent{{Level: "info", Message: "hello"}},
			Next:   42,
		})
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := client.Logs(context.Background(), apiclient.LogQuery{
		Since:     3,
		Limit:     50,
		Follow:    true,
		Component: "daemon",
		SessionID: "abc",
	})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if resp.Next != 42 || len(resp.Events) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	want := map[string]string{"since": "3", "limit": "50", "follow": "1", "component": "daemon", "session_id": "abc"}
	for key, value := range want {
		if gotQuery.Get(key) != value {
			t.Errorf("query %s = %q, want %q", key, gotQuery.Get(key), value)
		}
	}
	if gotQuery.Has("tail") {
		t.Error("tail should be omitted when unset")
	}
}

func TestErrorResponseDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "weights missing", Kind: "model_unavailable", Retryable: true})
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "")
	_, err := client.Model(context.Background())
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apiclient.Error, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusServiceUnavailable || !apiErr.Retryable {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if apiclient.KindOf(err) != string(services.KindModelUnavailable) {
		t.Fatalf("unexpected kind %q", apiclient.KindOf(err))
	}
	if apiclient.IsUnavailable(err) {
		t.Fatal("an error response is not an unreachable daemon")
	}
}

func TestIsUnavailableForClosedServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, _ := apiclient.New(base, "")
	_, err := client.Health(context.Background())
	if !apiclient.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestClientAgainstDaemon(t *testing.T) {
	server := testsupport.StartAPI(t, testsupport.WithAPIToken("token"))
	ctx := context.Background()

	anonymous, _ := apiclient.New(server.URL(), "")
	if _, err := anonymous.Health(ctx); err != nil {
		t.Fatalf("health without token: %v", err)
	}
	_, err := anonymous.Status(ctx)
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	client, _ := apiclient.New(server.URL(), "token")
	model, err := client.Model(ctx)
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	if len(model.Labels) != 7 {
		t.Fatalf("expected 7 labels, got %v", model.Labels)
	}

	image := filepath.Join(t.TempDir(), "face.png")
	if err := os.WriteFile(image, testsupport.PNG(t, testsupport.Frame(64, 64)), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	preview, err := client.Preview(ctx, image, "image")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.DominantEmotion != "Happy" {
		t.Fatalf("unexpected preview %+v", preview)
	}

	uploaded, err := client.Analyze(ctx, image, apiclient.UploadOptions{MediaType: "image", UserID: 9})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(uploaded.Analyses) != 1 || uploaded.Analyses[0].UserID != 9 {
		t.Fatalf("unexpected upload %+v", uploaded)
	}
	id := uploaded.Analyses[0].ID

	list, err := client.Analyses(ctx, apiclient.AnalysisQuery{Emotion: "Happy", Limit: 5})
	if err != nil {
		t.Fatalf("Analyses: %v", err)
	}
	if len(list.Items) != 1 || list.Filters.Limit != 5 {
		t.Fatalf("unexpected list %+v", list)
	}

	got, err := client.Analysis(ctx, id)
	if err != nil || got.ID != id {
		t.Fatalf("Analysis(%d) = %+v, %v", id, got, err)
	}
	if err := client.DeleteAnalysis(ctx, id); err != nil {
		t.Fatalf("DeleteAnalysis: %v", err)
	}
	if _, err := client.Analysis(ctx, id); err == nil {
		t.Fatal("expected error for deleted analysis")
	}

	sessions, err := client.Sessions(ctx)
	if err != nil || len(sessions) != 0 {
		t.Fatalf("Sessions = %v, %v", sessions, err)
	}
	_, err = client.StopSession(ctx, "missing")
	if apiclient.KindOf(err) != string(services.KindSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}
}
