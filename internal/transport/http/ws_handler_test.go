package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/engine"
	"livequiz-service/internal/infra/memory"
)

var testCreds = Credentials{Username: "admin", Password: "secret"}

func newWSServer(t *testing.T) (*engine.Engine, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	eng := engine.New(memory.NewStateStore(), hub)
	t.Cleanup(eng.Close)

	handler := NewWSHandler(eng, hub, testCreds)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return eng, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": json.RawMessage(raw)}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// waitFor skips broadcasts until a message of the wanted type arrives.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string) wsMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read while waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("no %s message within deadline", msgType)
	return wsMessage{}
}

func TestServeWSSendsInitialState(t *testing.T) {
	_, srv := newWSServer(t)
	conn := dialWS(t, srv)

	msg := waitFor(t, conn, engine.EventState)
	var snap domain.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Status != domain.StatusWaiting {
		t.Fatalf("expected WAITING in initial snapshot, got %s", snap.Status)
	}
}

func TestJoinQuiz(t *testing.T) {
	eng, srv := newWSServer(t)
	conn := dialWS(t, srv)
	waitFor(t, conn, engine.EventState)

	send(t, conn, "join_quiz", map[string]string{"name": "Alice"})

	msg := waitFor(t, conn, "joined_successfully")
	var joined joinedPayload
	if err := json.Unmarshal(msg.Payload, &joined); err != nil {
		t.Fatalf("decode joined payload: %v", err)
	}
	if joined.IsHost {
		t.Fatalf("expected participant join, got host")
	}
	if joined.Player.Name != "Alice" || joined.Player.ID == "" {
		t.Fatalf("unexpected player: %+v", joined.Player)
	}

	players := eng.Standings()
	if len(players) != 1 || players[0].Name != "Alice" {
		t.Fatalf("expected Alice registered with the engine, got %+v", players)
	}
}

func TestJoinBroadcastsToOtherClients(t *testing.T) {
	_, srv := newWSServer(t)
	watcher := dialWS(t, srv)
	waitFor(t, watcher, engine.EventState)

	joiner := dialWS(t, srv)
	waitFor(t, joiner, engine.EventState)
	send(t, joiner, "join_quiz", map[string]string{"name": "Alice"})
	waitFor(t, joiner, "joined_successfully")

	msg := waitFor(t, watcher, engine.EventState)
	var snap domain.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Players) != 1 || snap.Players[0].Name != "Alice" {
		t.Fatalf("expected join broadcast with Alice, got %+v", snap.Players)
	}
}

func TestHostLogin(t *testing.T) {
	_, srv := newWSServer(t)
	conn := dialWS(t, srv)
	waitFor(t, conn, engine.EventState)

	send(t, conn, "host_login", map[string]string{"username": "admin", "password": "secret"})

	msg := waitFor(t, conn, "joined_successfully")
	var joined joinedPayload
	if err := json.Unmarshal(msg.Payload, &joined); err != nil {
		t.Fatalf("decode joined payload: %v", err)
	}
	if !joined.IsHost {
		t.Fatalf("expected host join")
	}
}

func TestHostLoginBadCredentials(t *testing.T) {
	eng, srv := newWSServer(t)
	conn := dialWS(t, srv)
	waitFor(t, conn, engine.EventState)

	send(t, conn, "host_login", map[string]string{"username": "admin", "password": "wrong"})

	waitFor(t, conn, "host_login_failed")
	if len(eng.Standings()) != 0 {
		t.Fatalf("expected no host registered after failed login")
	}
}

func TestHostManagesQuizOverWS(t *testing.T) {
	eng, srv := newWSServer(t)
	conn := dialWS(t, srv)
	waitFor(t, conn, engine.EventState)

	send(t, conn, "host_login", map[string]string{"username": "admin", "password": "secret"})
	waitFor(t, conn, "joined_successfully")

	send(t, conn, "add_question", domain.Question{
		Prompt:       "pick one",
		Kind:         domain.MultipleChoice,
		Options:      []string{"a", "b"},
		CorrectIndex: 0,
		TimeLimitSec: 300,
		Points:       100,
	})

	send(t, conn, "sync_marker", map[string]string{})
	waitFor(t, conn, "error")
	if len(eng.Questions()) != 1 {
		t.Fatalf("expected question added over ws, got %d", len(eng.Questions()))
	}

	send(t, conn, "start_quiz", map[string]string{})
	send(t, conn, "sync_marker", map[string]string{})
	waitFor(t, conn, "error")
	if eng.Status() != domain.StatusLive {
		t.Fatalf("expected quiz live after host start, got %s", eng.Status())
	}
}

func TestStartQuizIgnoredForNonHost(t *testing.T) {
	eng, srv := newWSServer(t)
	if _, err := eng.AddQuestion(domain.Question{
		Prompt:       "pick one",
		Kind:         domain.MultipleChoice,
		Options:      []string{"a", "b"},
		CorrectIndex: 0,
		TimeLimitSec: 300,
		Points:       100,
	}); err != nil {
		t.Fatalf("add question: %v", err)
	}

	conn := dialWS(t, srv)
	waitFor(t, conn, engine.EventState)
	send(t, conn, "join_quiz", map[string]string{"name": "Alice"})
	waitFor(t, conn, "joined_successfully")

	send(t, conn, "start_quiz", map[string]string{})
	send(t, conn, "sync_marker", map[string]string{})
	waitFor(t, conn, "error")

	if eng.Status() != domain.StatusWaiting {
		t.Fatalf("expected non-host start ignored, status %s", eng.Status())
	}
}

func TestAnswerUpdateOverWS(t *testing.T) {
	eng, srv := newWSServer(t)
	if _, err := eng.AddQuestion(domain.Question{
		Prompt:       "pick one",
		Kind:         domain.MultipleChoice,
		Options:      []string{"a", "b"},
		CorrectIndex: 1,
		TimeLimitSec: 300,
		Points:       100,
	}); err != nil {
		t.Fatalf("add question: %v", err)
	}

	conn := dialWS(t, srv)
	waitFor(t, conn, engine.EventState)
	send(t, conn, "join_quiz", map[string]string{"name": "Alice"})
	waitFor(t, conn, "joined_successfully")

	if err := eng.StartQuiz(time.Time{}); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	send(t, conn, "answer_update", map[string]any{"answer": 1})

	// The read loop dispatches in order, so the error reply to an unknown
	// message type proves the answer before it was processed.
	send(t, conn, "sync_marker", map[string]string{})
	waitFor(t, conn, "error")

	eng.LockAnswers()
	if got := eng.Standings()[0].Score; got != 100 {
		t.Fatalf("expected answer scored at lock, got %d", got)
	}
}

func TestUnknownMessageType(t *testing.T) {
	_, srv := newWSServer(t)
	conn := dialWS(t, srv)
	waitFor(t, conn, engine.EventState)

	send(t, conn, "bogus", map[string]string{})
	waitFor(t, conn, "error")
}

func TestDecodeAnswer(t *testing.T) {
	if a, err := decodeAnswer(json.RawMessage(`2`)); err != nil || a != domain.ChoiceAnswer(2) {
		t.Fatalf("expected choice answer, got %v %v", a, err)
	}
	if a, err := decodeAnswer(json.RawMessage(`"Mars"`)); err != nil || a != domain.TextAnswer("Mars") {
		t.Fatalf("expected text answer, got %v %v", a, err)
	}
	if _, err := decodeAnswer(json.RawMessage(`{"x":1}`)); err == nil {
		t.Fatalf("expected object answer rejected")
	}
	if _, err := decodeAnswer(nil); err == nil {
		t.Fatalf("expected empty answer rejected")
	}
}
