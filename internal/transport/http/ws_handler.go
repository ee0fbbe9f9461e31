package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/engine"
)

// WSHandler upgrades HTTP requests to websockets and wires them into the
// quiz engine: participants join and submit answers, the host manages
// questions and quiz control, and everyone receives state broadcasts
// through the hub.
type WSHandler struct {
	engine   *engine.Engine
	hub      *Hub
	admin    Credentials
	upgrader websocket.Upgrader
}

// Credentials gate host login and the admin REST surface.
type Credentials struct {
	Username string
	Password string
}

func NewWSHandler(eng *engine.Engine, hub *Hub, admin Credentials) *WSHandler {
	return &WSHandler{
		engine: eng,
		hub:    hub,
		admin:  admin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type answerPayload struct {
	Answer json.RawMessage `json:"answer"`
}

type startPayload struct {
	LinkExpiry string `json:"linkExpiry"`
}

type updatePayload struct {
	ID      string                `json:"id"`
	Updates domain.QuestionUpdate `json:"updates"`
}

type idPayload struct {
	ID string `json:"id"`
}

type joinedPayload struct {
	Player domain.PlayerView `json:"player"`
	IsHost bool              `json:"isHost"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	client := newWSClient(uuid.NewString(), conn)
	h.hub.register(client)
	go client.writeLoop()

	defer func() {
		h.engine.Disconnect(client.socketID)
		h.hub.unregister(client)
		conn.Close()
	}()

	// New observers get the current state immediately instead of waiting
	// for the next change.
	client.enqueue(outboundMessage{Type: engine.EventState, Payload: h.engine.Snapshot()})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.dispatch(client, inbound)
	}
}

func (h *WSHandler) dispatch(c *wsClient, msg inboundMessage) {
	switch msg.Type {
	case "join_quiz":
		h.handleJoin(c, msg.Payload)
	case "host_login":
		h.handleHostLogin(c, msg.Payload)
	case "answer_update":
		h.handleAnswer(c, msg.Payload)
	case "start_quiz":
		h.handleStart(c, msg.Payload)
	case "add_question":
		h.handleAddQuestion(c, msg.Payload)
	case "update_question":
		h.handleUpdateQuestion(c, msg.Payload)
	case "delete_question":
		h.handleDeleteQuestion(c, msg.Payload)
	default:
		c.enqueue(errorMessage("unsupported message type"))
	}
}

func (h *WSHandler) handleJoin(c *wsClient, raw json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.enqueue(errorMessage("invalid join payload"))
		return
	}

	player, err := h.engine.Join(p.PlayerID, p.Name, c.socketID)
	if err != nil {
		c.enqueue(errorMessage(err.Error()))
		return
	}

	c.setPlayer(player.ID, false)
	c.enqueue(outboundMessage{Type: "joined_successfully", Payload: joinedPayload{
		Player: playerView(player),
		IsHost: false,
	}})
}

func (h *WSHandler) handleHostLogin(c *wsClient, raw json.RawMessage) {
	var p loginPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.enqueue(errorMessage("invalid login payload"))
		return
	}
	if p.Username != h.admin.Username || p.Password != h.admin.Password {
		c.enqueue(outboundMessage{Type: "host_login_failed", Payload: errorPayload{Message: "invalid credentials"}})
		return
	}

	host := h.engine.EnsureHost(p.Username, c.socketID)
	c.setPlayer(host.ID, true)
	c.enqueue(outboundMessage{Type: "joined_successfully", Payload: joinedPayload{
		Player: playerView(host),
		IsHost: true,
	}})
}

func (h *WSHandler) handleAnswer(c *wsClient, raw json.RawMessage) {
	playerID, isHost := c.player()
	if playerID == "" || isHost {
		return
	}

	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	answer, err := decodeAnswer(p.Answer)
	if err != nil {
		return
	}

	// Rejections are silent: the engine drops out-of-window or malformed
	// submissions without surfacing anything a client could exploit.
	h.engine.SubmitAnswer(playerID, answer)
}

func (h *WSHandler) handleStart(c *wsClient, raw json.RawMessage) {
	if !h.engine.IsHostSocket(c.socketID) {
		return
	}

	var p startPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			c.enqueue(errorMessage("invalid start payload"))
			return
		}
	}
	expiry, err := parseExpiry(p.LinkExpiry)
	if err != nil {
		c.enqueue(errorMessage("invalid link expiry"))
		return
	}

	if err := h.engine.StartQuiz(expiry); err != nil {
		c.enqueue(errorMessage(err.Error()))
	}
}

func (h *WSHandler) handleAddQuestion(c *wsClient, raw json.RawMessage) {
	if !h.engine.IsHostSocket(c.socketID) {
		return
	}

	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		c.enqueue(errorMessage("invalid question payload"))
		return
	}
	if _, err := h.engine.AddQuestion(q); err != nil {
		c.enqueue(errorMessage(err.Error()))
	}
}

func (h *WSHandler) handleUpdateQuestion(c *wsClient, raw json.RawMessage) {
	if !h.engine.IsHostSocket(c.socketID) {
		return
	}

	var p updatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.enqueue(errorMessage("invalid update payload"))
		return
	}
	if _, err := h.engine.UpdateQuestion(p.ID, p.Updates); err != nil {
		c.enqueue(errorMessage(err.Error()))
	}
}

func (h *WSHandler) handleDeleteQuestion(c *wsClient, raw json.RawMessage) {
	if !h.engine.IsHostSocket(c.socketID) {
		return
	}

	var p idPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.enqueue(errorMessage("invalid delete payload"))
		return
	}
	if err := h.engine.DeleteQuestion(p.ID); err != nil {
		c.enqueue(errorMessage(err.Error()))
	}
}

// decodeAnswer converts raw client input into the closed answer union: a
// JSON integer becomes a choice, a JSON string becomes free text, anything
// else is rejected.
func decodeAnswer(raw json.RawMessage) (domain.Answer, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty answer")
	}

	var idx int
	if err := json.Unmarshal(raw, &idx); err == nil {
		return domain.ChoiceAnswer(idx), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return domain.TextAnswer(text), nil
	}
	return nil, errors.New("answer must be an option index or a string")
}

func parseExpiry(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func playerView(p domain.Player) domain.PlayerView {
	return domain.PlayerView{ID: p.ID, Name: p.Name, Score: p.Score, Connected: p.Connected()}
}

func errorMessage(msg string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
}
