// Package butler implements the conversational agent behind every model
// kind: a chat model looping over local tools, with optional per-thread
// transcript memory.
package butler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	memoryx "github.com/JRealValdes/jarvis/agent/memory"
)

const defaultMaxSteps = 12

type Agent struct {
	name   string
	runner compose.Runnable[[]*schema.Message, []*schema.Message]
	memory memoryx.Store
}

var (
	_ contractx.Agent     = (*Agent)(nil)
	_ contractx.Forgetter = (*Agent)(nil)
)

type options struct {
	name     string
	tools    []einotool.BaseTool
	memory   memoryx.Store
	maxSteps int
}

type Option func(*options)

func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithTools is ignored for models that cannot bind tools.
func WithTools(tools ...einotool.BaseTool) Option {
	return func(o *options) { o.tools = append(o.tools, tools...) }
}

// WithMemory makes the agent persist each thread's transcript.
func WithMemory(store memoryx.Store) Option {
	return func(o *options) { o.memory = store }
}

func WithMaxSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, opts ...Option) (*Agent, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}

	o := options{name: "butler", maxSteps: defaultMaxSteps}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	boundModel, toolsNode, err := bindTools(ctx, chatModel, o.tools)
	if err != nil {
		return nil, err
	}

	runner, err := compileLoop(ctx, boundModel, toolsNode, "butler."+o.name, o.maxSteps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	return &Agent{
		name:   o.name,
		runner: runner,
		memory: o.memory,
	}, nil
}

func bindTools(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	tools []einotool.BaseTool,
) (einomodel.BaseChatModel, *compose.ToolsNode, error) {
	if len(tools) == 0 {
		return chatModel, nil, nil
	}
	toolModel, ok := chatModel.(einomodel.ToolCallingChatModel)
	if !ok {
		log.Debug().Msg("butler: chat model cannot call tools, running without them")
		return chatModel, nil, nil
	}

	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: tool info: %v", contractx.ErrValidation, err)
		}
		infos = append(infos, info)
	}

	bound, err := toolModel.WithTools(infos)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
	}

	node, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{Tools: tools})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create tools node: %v", contractx.ErrModelInvoke, err)
	}
	return bound, node, nil
}

// Invoke runs one turn. With memory and a thread id the stored transcript
// is prepended and the result saved back; the returned messages are the
// thread's full transcript.
func (a *Agent) Invoke(ctx context.Context, messages []contractx.Message, cfg contractx.InvokeConfig) (contractx.Result, error) {
	input, err := toSchema(messages)
	if err != nil {
		return contractx.Result{}, err
	}

	threadID := strings.TrimSpace(cfg.ThreadID)
	remember := a.memory != nil && threadID != ""

	if remember {
		history, err := a.memory.Load(ctx, threadID)
		if err != nil {
			return contractx.Result{}, fmt.Errorf("%w: load memory thread=%s: %v", contractx.ErrAgentInvocation, threadID, err)
		}
		input = append(history, input...)
	}

	out, err := a.runner.Invoke(ctx, input)
	if err != nil {
		return contractx.Result{}, fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, a.name, err)
	}

	if remember {
		if err := a.memory.Save(ctx, threadID, out); err != nil {
			return contractx.Result{}, fmt.Errorf("%w: save memory thread=%s: %v", contractx.ErrAgentInvocation, threadID, err)
		}
	}

	return contractx.Result{Messages: fromSchema(out)}, nil
}

// Forget drops the thread's stored transcript. Agents without memory have
// nothing to forget.
func (a *Agent) Forget(ctx context.Context, threadID string) error {
	if a.memory == nil {
		return nil
	}
	if err := a.memory.Forget(ctx, threadID); err != nil && !errors.Is(err, memoryx.ErrInvalidThread) {
		return fmt.Errorf("forget thread=%s: %w", threadID, err)
	}
	return nil
}

func (a *Agent) HasMemory() bool {
	return a.memory != nil
}
