package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/engine"
)

// AdminHandler exposes the host's REST command surface: quiz control,
// question management, and link controls. Every route sits behind basic
// auth and a per-IP rate limit.
type AdminHandler struct {
	engine  *engine.Engine
	admin   Credentials
	limiter *ipLimiter
}

func NewAdminHandler(eng *engine.Engine, admin Credentials) *AdminHandler {
	return &AdminHandler{
		engine:  eng,
		admin:   admin,
		limiter: newIPLimiter(5),
	}
}

// Register mounts the admin routes on mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/admin/start-quiz", h.guard(http.MethodPost, h.startQuiz))
	mux.HandleFunc("/api/admin/add-question", h.guard(http.MethodPost, h.addQuestion))
	mux.HandleFunc("/api/admin/update-question", h.guard(http.MethodPut, h.updateQuestion))
	mux.HandleFunc("/api/admin/delete-question", h.guard(http.MethodDelete, h.deleteQuestion))
	mux.HandleFunc("/api/admin/activate-quiz-link", h.guard(http.MethodPost, h.activateLink))
	mux.HandleFunc("/api/admin/deactivate-quiz-link", h.guard(http.MethodPost, h.deactivateLink))
	mux.HandleFunc("/api/admin/reset", h.guard(http.MethodPost, h.reset))
}

func (h *AdminHandler) guard(method string, next http.HandlerFunc) http.HandlerFunc {
	return h.limiter.limitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authorization")
			return
		}
		if user != h.admin.Username || pass != h.admin.Password {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	})
}

type startQuizRequest struct {
	LinkExpiry string `json:"linkExpiry"`
}

func (h *AdminHandler) startQuiz(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	expiry, err := parseExpiry(req.LinkExpiry)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid link expiry")
		return
	}

	switch err := h.engine.StartQuiz(expiry); {
	case errors.Is(err, domain.ErrQuizLive):
		writeError(w, http.StatusBadRequest, "quiz already live")
	case errors.Is(err, domain.ErrNoQuestions):
		writeError(w, http.StatusBadRequest, "quiz has no questions")
	case err != nil:
		log.Printf("start quiz failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to start quiz")
	default:
		writeOK(w, map[string]any{"message": "quiz started"})
	}
}

func (h *AdminHandler) addQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid question data")
		return
	}

	added, err := h.engine.AddQuestion(q)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w, map[string]any{"question": added})
}

type updateQuestionRequest struct {
	ID      string                `json:"id"`
	Updates domain.QuestionUpdate `json:"updates"`
}

func (h *AdminHandler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var req updateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update data")
		return
	}

	updated, err := h.engine.UpdateQuestion(req.ID, req.Updates)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w, map[string]any{"question": updated})
}

type deleteQuestionRequest struct {
	ID string `json:"id"`
}

func (h *AdminHandler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	var req deleteQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid delete data")
		return
	}

	if err := h.engine.DeleteQuestion(req.ID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w, map[string]any{"message": "question deleted"})
}

type linkRequest struct {
	Expiry string `json:"expiry"`
}

func (h *AdminHandler) activateLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	expiry, err := parseExpiry(req.Expiry)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expiry date")
		return
	}

	h.engine.ActivateLink(expiry)
	writeOK(w, map[string]any{"message": "link activated"})
}

func (h *AdminHandler) deactivateLink(w http.ResponseWriter, _ *http.Request) {
	h.engine.DeactivateLink()
	writeOK(w, map[string]any{"message": "link deactivated"})
}

func (h *AdminHandler) reset(w http.ResponseWriter, _ *http.Request) {
	h.engine.Reset()
	writeOK(w, map[string]any{"message": "quiz reset"})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizLive):
		writeError(w, http.StatusConflict, "quiz is live")
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, "question not found")
	case errors.Is(err, domain.ErrInvalidQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("admin request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeOK(w http.ResponseWriter, body map[string]any) {
	body["status"] = "ok"
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"status": "error", "message": msg})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
