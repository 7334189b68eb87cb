package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

type Handler struct {
	sessions     Sessions
	defaultModel contractx.ModelKind
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.handleAsk)
	r.Post("/whatsapp", h.handleWhatsApp)
	r.Post("/reset", h.handleResetAll)
	r.Post("/reset/{threadID}", h.handleResetThread)
	r.Get("/status", h.handleStatus)
}

type askRequest struct {
	Message  string `json:"message"`
	Model    string `json:"model"`
	ThreadID string `json:"thread_id"`
}

type askResponse struct {
	Responses []string `json:"responses"`
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload askRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	model, err := h.model(payload.Model)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines, err := h.sessions.Ask(r.Context(), model, payload.ThreadID, payload.Message, nil)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, askResponse{Responses: lines})
}

// handleWhatsApp answers Twilio webhooks; the sender number is the thread.
func (h *Handler) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	body := strings.TrimSpace(r.PostFormValue("Body"))
	from := strings.TrimSpace(r.PostFormValue("From"))
	if body == "" || from == "" {
		http.Error(w, "Body and From are required", http.StatusBadRequest)
		return
	}

	lines, err := h.sessions.Ask(r.Context(), h.defaultModel, from, body, nil)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(strings.Join(lines, "\n")))
}

func (h *Handler) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ResetAll(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleResetThread resets one model's session for the thread, or every
// model's when ?model= is omitted.
func (h *Handler) handleResetThread(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimSpace(chi.URLParam(r, "threadID"))
	if threadID == "" {
		respondError(w, http.StatusBadRequest, "thread id is required")
		return
	}

	raw := r.URL.Query().Get("model")
	if strings.TrimSpace(raw) == "" {
		if err := h.sessions.ResetThreadAllModels(r.Context(), threadID); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "reset", "thread_id": threadID})
		return
	}

	model, err := contractx.ParseModelKind(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.sessions.ResetThread(r.Context(), model, threadID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset", "thread_id": threadID, "model": string(model)})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sessions.Status())
}

func (h *Handler) model(raw string) (contractx.ModelKind, error) {
	if strings.TrimSpace(raw) == "" {
		return h.defaultModel, nil
	}
	return contractx.ParseModelKind(raw)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, contractx.ErrUnsupportedModel), errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
