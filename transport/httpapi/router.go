// Package httpapi exposes the session registry over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	sessionx "github.com/JRealValdes/jarvis/agent/session"
)

// Sessions is the part of the session registry the API needs.
type Sessions interface {
	Ask(ctx context.Context, model contractx.ModelKind, threadID, prompt string, user *contractx.UserRecord) ([]string, error)
	ResetThread(ctx context.Context, model contractx.ModelKind, threadID string) error
	ResetThreadAllModels(ctx context.Context, threadID string) error
	ResetAll(ctx context.Context) error
	Status() sessionx.Status
}

var _ Sessions = (*sessionx.Registry)(nil)

func NewRouter(sessions Sessions, defaultModel contractx.ModelKind) http.Handler {
	h := &Handler{sessions: sessions, defaultModel: defaultModel}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	h.RegisterRoutes(r)
	return r
}
