package http

import (
	"net/http"

	"livequiz-service/internal/engine"
)

// PublicHandler serves the unauthenticated read-only endpoints: health,
// player standings, the current state snapshot, and the link-validity check
// that gates participant entry.
type PublicHandler struct {
	engine  *engine.Engine
	limiter *ipLimiter
}

func NewPublicHandler(eng *engine.Engine) *PublicHandler {
	return &PublicHandler{
		engine:  eng,
		limiter: newIPLimiter(10),
	}
}

// Register mounts the public routes on mux.
func (h *PublicHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/results", h.limiter.limitMiddleware(h.results))
	mux.HandleFunc("/api/quiz-state", h.limiter.limitMiddleware(h.quizState))
	mux.HandleFunc("/api/link-valid", h.limiter.limitMiddleware(h.linkValid))
}

func (h *PublicHandler) results(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"results": h.engine.Standings()})
}

func (h *PublicHandler) quizState(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"quiz": h.engine.Snapshot()})
}

func (h *PublicHandler) linkValid(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"valid": h.engine.LinkValid()})
}
