package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

// AgentRegistry builds one agent per model kind and caches it until Reset.
type AgentRegistry struct {
	builders map[contractx.ModelKind]contractx.AgentBuilder

	mu     sync.Mutex
	agents map[contractx.ModelKind]contractx.Agent
}

func NewAgentRegistry(builders map[contractx.ModelKind]contractx.AgentBuilder) *AgentRegistry {
	copied := make(map[contractx.ModelKind]contractx.AgentBuilder, len(builders))
	for kind, b := range builders {
		if b != nil {
			copied[kind] = b
		}
	}
	return &AgentRegistry{
		builders: copied,
		agents:   make(map[contractx.ModelKind]contractx.Agent),
	}
}

// GetOrBuild returns the cached agent for model, building it on first use.
// Concurrent first calls may build twice; the first stored instance wins.
// A failed build caches nothing.
func (r *AgentRegistry) GetOrBuild(ctx context.Context, model contractx.ModelKind) (contractx.Agent, error) {
	if agent, ok := r.Cached(model); ok {
		return agent, nil
	}

	build, ok := r.builders[model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contractx.ErrUnsupportedModel, model)
	}

	agent, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build agent %s: %w", model, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.agents[model]; ok {
		return existing, nil
	}
	r.agents[model] = agent
	log.Debug().Str("model", string(model)).Msg("agent cached")
	return agent, nil
}

func (r *AgentRegistry) Cached(model contractx.ModelKind) (contractx.Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[model]
	return agent, ok
}

func (r *AgentRegistry) Supports(model contractx.ModelKind) bool {
	_, ok := r.builders[model]
	return ok
}

// Kinds lists every model kind with a builder, sorted.
func (r *AgentRegistry) Kinds() []contractx.ModelKind {
	out := make([]contractx.ModelKind, 0, len(r.builders))
	for kind := range r.builders {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Models lists the kinds with a cached agent, sorted.
func (r *AgentRegistry) Models() []contractx.ModelKind {
	r.mu.Lock()
	out := make([]contractx.ModelKind, 0, len(r.agents))
	for kind := range r.agents {
		out = append(out, kind)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *AgentRegistry) Reset() {
	r.mu.Lock()
	r.agents = make(map[contractx.ModelKind]contractx.Agent)
	r.mu.Unlock()
}
