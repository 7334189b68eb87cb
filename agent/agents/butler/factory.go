package butler

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/rs/zerolog/log"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	llmx "github.com/JRealValdes/jarvis/agent/llm"
	memoryx "github.com/JRealValdes/jarvis/agent/memory"
	arkx "github.com/JRealValdes/jarvis/pkg/ark"
)

// Deps are the shared collaborators every built agent draws from.
type Deps struct {
	LLM    llmx.Config
	Ark    arkx.Config
	Memory memoryx.Store
	Tools  []einotool.BaseTool
}

type kindSpec struct {
	memory bool
	tools  bool
}

// Zephyr on the HuggingFace router has no function calling.
var kinds = map[contractx.ModelKind]kindSpec{
	contractx.ModelGPT35:   {memory: true, tools: true},
	contractx.ModelGPT4:    {memory: true, tools: true},
	contractx.ModelZephyr:  {},
	contractx.ModelMistral: {tools: true},
	contractx.ModelDoubao:  {tools: true},
}

// Factory builds agents per model kind. Memory kinds each get their own
// partition of the shared store.
type Factory struct {
	deps   Deps
	memory map[contractx.ModelKind]memoryx.Store
}

var _ contractx.ThreadMemory = (*Factory)(nil)

func NewFactory(deps Deps) (*Factory, error) {
	if err := deps.LLM.Validate(); err != nil {
		return nil, err
	}
	if deps.Memory == nil {
		deps.Memory = memoryx.NewInProcessStore()
	}
	memory := make(map[contractx.ModelKind]memoryx.Store)
	for kind, spec := range kinds {
		if spec.memory {
			memory[kind] = memoryx.Scoped(deps.Memory, string(kind))
		}
	}
	return &Factory{deps: deps, memory: memory}, nil
}

// ForgetThread drops the kind's transcript for threadID whether or not an
// agent for it is currently built.
func (f *Factory) ForgetThread(ctx context.Context, kind contractx.ModelKind, threadID string) error {
	store, ok := f.memory[kind]
	if !ok {
		return nil
	}
	if err := store.Forget(ctx, threadID); err != nil && !errors.Is(err, memoryx.ErrInvalidThread) {
		return fmt.Errorf("forget %s/%s: %w", kind, threadID, err)
	}
	return nil
}

// ForgetAll drops every transcript of every memory kind.
func (f *Factory) ForgetAll(ctx context.Context) error {
	var errs []error
	for kind, store := range f.memory {
		if err := store.Clear(ctx, ""); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// Builders returns one builder per supported model kind.
func (f *Factory) Builders() map[contractx.ModelKind]contractx.AgentBuilder {
	out := make(map[contractx.ModelKind]contractx.AgentBuilder, len(kinds))
	for kind := range kinds {
		out[kind] = func(ctx context.Context) (contractx.Agent, error) {
			return f.Build(ctx, kind)
		}
	}
	return out
}

func (f *Factory) Build(ctx context.Context, kind contractx.ModelKind) (contractx.Agent, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contractx.ErrUnsupportedModel, kind)
	}

	chatModel, err := f.chatModel(ctx, kind)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithName(string(kind))}
	if spec.tools {
		opts = append(opts, WithTools(f.deps.Tools...))
	}
	if spec.memory {
		opts = append(opts, WithMemory(f.memory[kind]))
	}

	agent, err := New(ctx, chatModel, opts...)
	if err != nil {
		return nil, err
	}
	log.Info().Str("model", string(kind)).Bool("memory", spec.memory).Msg("agent built")
	return agent, nil
}

func (f *Factory) chatModel(ctx context.Context, kind contractx.ModelKind) (einomodel.BaseChatModel, error) {
	if kind == contractx.ModelDoubao {
		m, err := f.deps.Ark.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, kind, err)
		}
		return m, nil
	}

	cfg, err := f.deps.LLM.OpenRouterFor(kind)
	if err != nil {
		return nil, err
	}
	m, err := cfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, kind, err)
	}
	return m, nil
}
