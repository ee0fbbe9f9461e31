package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livequiz-service/internal/engine"
	"livequiz-service/internal/infra/memory"
)

func newPublicServer(t *testing.T) (*engine.Engine, *httptest.Server) {
	t.Helper()
	eng := engine.New(memory.NewStateStore(), NewHub())
	t.Cleanup(eng.Close)

	mux := http.NewServeMux()
	NewPublicHandler(eng).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return eng, srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func TestHealthz(t *testing.T) {
	_, srv := newPublicServer(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestResultsEndpoint(t *testing.T) {
	eng, srv := newPublicServer(t)
	if _, err := eng.Join("", "Alice", "sock-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	var body struct {
		Status  string `json:"status"`
		Results []struct {
			Name  string `json:"name"`
			Score int    `json:"score"`
		} `json:"results"`
	}
	getJSON(t, srv, "/api/results", &body)

	if body.Status != "ok" {
		t.Fatalf("expected ok status, got %q", body.Status)
	}
	if len(body.Results) != 1 || body.Results[0].Name != "Alice" {
		t.Fatalf("unexpected results: %+v", body.Results)
	}
}

func TestQuizStateEndpoint(t *testing.T) {
	_, srv := newPublicServer(t)

	var body struct {
		Quiz struct {
			Status               string `json:"status"`
			CurrentQuestionIndex int    `json:"currentQuestionIndex"`
		} `json:"quiz"`
	}
	getJSON(t, srv, "/api/quiz-state", &body)

	if body.Quiz.Status != "WAITING" {
		t.Fatalf("expected WAITING, got %q", body.Quiz.Status)
	}
	if body.Quiz.CurrentQuestionIndex != -1 {
		t.Fatalf("expected index -1, got %d", body.Quiz.CurrentQuestionIndex)
	}
}

func TestLinkValidEndpoint(t *testing.T) {
	eng, srv := newPublicServer(t)

	var body struct {
		Valid bool `json:"valid"`
	}
	getJSON(t, srv, "/api/link-valid", &body)
	if body.Valid {
		t.Fatalf("expected invalid link before activation")
	}

	eng.ActivateLink(time.Now().Add(time.Hour))
	getJSON(t, srv, "/api/link-valid", &body)
	if !body.Valid {
		t.Fatalf("expected valid link after activation")
	}
}
