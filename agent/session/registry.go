package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	identityx "github.com/JRealValdes/jarvis/agent/identity"
	normalizex "github.com/JRealValdes/jarvis/agent/normalize"
	promptx "github.com/JRealValdes/jarvis/agent/prompt"
	statex "github.com/JRealValdes/jarvis/agent/state"
)

type Config struct {
	Policy        statex.Policy
	QuietTools    []string
	InvokeTimeout time.Duration
	// Memory, when set, is where resets forget agent transcripts. Without
	// it only cached agents are asked to forget.
	Memory contractx.ThreadMemory
}

type key struct {
	model    contractx.ModelKind
	threadID string
}

// Registry owns the live sessions, one per (model, thread).
type Registry struct {
	agents *AgentRegistry
	deps   *shared
	memory contractx.ThreadMemory

	mu       sync.Mutex
	sessions map[key]*Session
}

// NewRegistry fails with ErrIdentificationPolicy on an unknown policy.
func NewRegistry(agents *AgentRegistry, resolver *identityx.Resolver, cfg Config) (*Registry, error) {
	if agents == nil {
		return nil, fmt.Errorf("%w: agent registry is required", contractx.ErrValidation)
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: identity resolver is required", contractx.ErrValidation)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	return &Registry{
		agents: agents,
		memory: cfg.Memory,
		deps: &shared{
			resolver:   resolver,
			prompts:    promptx.LoadPromptSet(),
			normalizer: normalizex.New(normalizex.WithQuietTools(cfg.QuietTools...)),
			policy:     cfg.Policy,
			timeout:    cfg.InvokeTimeout,
		},
		sessions: make(map[key]*Session),
	}, nil
}

// GetOrCreate returns the session for (model, threadID), creating it and
// building the model's agent if needed. user pre-identifies a new session.
func (r *Registry) GetOrCreate(ctx context.Context, model contractx.ModelKind, threadID string, user *contractx.UserRecord) (*Session, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread id is required", contractx.ErrValidation)
	}
	k := key{model: model, threadID: threadID}

	r.mu.Lock()
	s, ok := r.sessions[k]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	agent, err := r.agents.GetOrBuild(ctx, model)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[k]; ok {
		return existing, nil
	}
	s = newSession(model, threadID, agent, r.deps, user)
	r.sessions[k] = s
	log.Info().Str("model", string(model)).Str("thread", threadID).Bool("identified", user != nil).Msg("session created")
	return s, nil
}

// Ask routes prompt to its session. Only unsupported models and invalid
// thread ids fail; everything else comes back as lines.
func (r *Registry) Ask(ctx context.Context, model contractx.ModelKind, threadID, prompt string, user *contractx.UserRecord) ([]string, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("%w: thread id is required", contractx.ErrValidation)
	}
	s, err := r.GetOrCreate(ctx, model, threadID, user)
	if err != nil {
		if errors.Is(err, contractx.ErrUnsupportedModel) {
			return nil, err
		}
		// Build failures of a supported model are reported like any other
		// agent failure.
		log.Error().Err(err).Str("model", string(model)).Msg("agent build failed")
		return []string{promptx.ErrorLine(err)}, nil
	}
	return s.Ask(ctx, prompt, user), nil
}

// ResetThread makes the model's agent memory forget the thread, then drops
// the session.
func (r *Registry) ResetThread(ctx context.Context, model contractx.ModelKind, threadID string) error {
	threadID = strings.TrimSpace(threadID)

	var forgetErr error
	if model.HasMemory() {
		forgetErr = r.forget(ctx, model, threadID)
	}

	r.mu.Lock()
	_, existed := r.sessions[key{model: model, threadID: threadID}]
	delete(r.sessions, key{model: model, threadID: threadID})
	r.mu.Unlock()

	log.Info().Str("model", string(model)).Str("thread", threadID).Bool("existed", existed).Msg("session reset")
	return forgetErr
}

func (r *Registry) forget(ctx context.Context, model contractx.ModelKind, threadID string) error {
	if r.memory != nil {
		return r.memory.ForgetThread(ctx, model, threadID)
	}
	agent, ok := r.agents.Cached(model)
	if !ok {
		return nil
	}
	f, ok := agent.(contractx.Forgetter)
	if !ok {
		return nil
	}
	if err := f.Forget(ctx, threadID); err != nil {
		return fmt.Errorf("forget %s/%s: %w", model, threadID, err)
	}
	return nil
}

// ResetThreadAllModels resets threadID on every supported model.
func (r *Registry) ResetThreadAllModels(ctx context.Context, threadID string) error {
	threadID = strings.TrimSpace(threadID)
	models := make(map[contractx.ModelKind]struct{})
	for _, m := range r.agents.Kinds() {
		models[m] = struct{}{}
	}
	r.mu.Lock()
	for k := range r.sessions {
		if k.threadID == threadID {
			models[k.model] = struct{}{}
		}
	}
	r.mu.Unlock()

	var errs []error
	for m := range models {
		if err := r.ResetThread(ctx, m, threadID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResetAll drops every session, every cached agent and every stored
// transcript, so the next request builds from scratch.
func (r *Registry) ResetAll(ctx context.Context) error {
	r.mu.Lock()
	n := len(r.sessions)
	r.sessions = make(map[key]*Session)
	r.mu.Unlock()

	r.agents.Reset()

	var err error
	if r.memory != nil {
		if err = r.memory.ForgetAll(ctx); err != nil {
			err = fmt.Errorf("forget all transcripts: %w", err)
		}
	}
	log.Info().Int("sessions", n).Err(err).Msg("all sessions and agents reset")
	return err
}

type SessionStatus struct {
	Model    string `json:"model"`
	ThreadID string `json:"thread_id"`
	State    string `json:"state"`
	User     string `json:"user,omitempty"`
}

type Status struct {
	AgentCount   int             `json:"agent_count"`
	Agents       []string        `json:"agents"`
	SessionCount int             `json:"session_count"`
	Sessions     []SessionStatus `json:"sessions"`
}

func (r *Registry) Status() Status {
	models := r.agents.Models()
	agents := make([]string, 0, len(models))
	for _, m := range models {
		agents = append(agents, string(m))
	}

	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	sessions := make([]SessionStatus, 0, len(list))
	for _, s := range list {
		st := SessionStatus{
			Model:    string(s.Model()),
			ThreadID: s.ThreadID(),
			State:    s.State().String(),
		}
		if u := s.User(); u != nil {
			st.User = u.Username
		}
		sessions = append(sessions, st)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Model != sessions[j].Model {
			return sessions[i].Model < sessions[j].Model
		}
		return sessions[i].ThreadID < sessions[j].ThreadID
	})

	return Status{
		AgentCount:   len(agents),
		Agents:       agents,
		SessionCount: len(sessions),
		Sessions:     sessions,
	}
}
