package contract

import "context"

// Agent is an LLM-backed conversational backend bound to one model.
type Agent interface {
	Invoke(ctx context.Context, messages []Message, cfg InvokeConfig) (Result, error)
}

// Forgetter is implemented by agents that keep per-thread memory.
type Forgetter interface {
	Forget(ctx context.Context, threadID string) error
}

// ThreadMemory is the agent-side transcript storage behind every model
// kind. It outlives the agents built on it, so resets go through it.
type ThreadMemory interface {
	ForgetThread(ctx context.Context, model ModelKind, threadID string) error
	ForgetAll(ctx context.Context) error
}

// UserRegistry looks up registered callers by hashed access identifier.
type UserRegistry interface {
	FindByHash(ctx context.Context, hashedID string) (*UserRecord, error)
}

// AgentBuilder constructs the agent for one model kind.
type AgentBuilder func(ctx context.Context) (Agent, error)
