package butler

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const (
	nodeModel   = "model"
	nodeTools   = "tools"
	nodeCollect = "collect"
)

type loopState struct {
	History []*schema.Message
}

// compileLoop builds START -> model -> (tools -> model)* -> collect -> END.
// The model node sees the whole accumulated history; collect returns it.
// toolsNode may be nil, in which case the model answers once.
func compileLoop(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	toolsNode *compose.ToolsNode,
	graphName string,
	maxSteps int,
) (compose.Runnable[[]*schema.Message, []*schema.Message], error) {
	graph := compose.NewGraph[[]*schema.Message, []*schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *loopState {
			return &loopState{}
		}),
	)

	appendInput := func(ctx context.Context, in []*schema.Message, st *loopState) ([]*schema.Message, error) {
		st.History = append(st.History, in...)
		return st.History, nil
	}
	appendOutput := func(ctx context.Context, out *schema.Message, st *loopState) (*schema.Message, error) {
		st.History = append(st.History, out)
		return out, nil
	}

	if err := graph.AddChatModelNode(nodeModel, chatModel,
		compose.WithStatePreHandler(appendInput),
		compose.WithStatePostHandler(appendOutput),
	); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}

	if err := graph.AddLambdaNode(nodeCollect,
		compose.InvokableLambda(func(ctx context.Context, _ *schema.Message) ([]*schema.Message, error) {
			var history []*schema.Message
			err := compose.ProcessState[*loopState](ctx, func(_ context.Context, st *loopState) error {
				history = make([]*schema.Message, len(st.History))
				copy(history, st.History)
				return nil
			})
			return history, err
		}),
	); err != nil {
		return nil, fmt.Errorf("add collect node: %w", err)
	}

	if err := graph.AddEdge(compose.START, nodeModel); err != nil {
		return nil, fmt.Errorf("add edge start->model: %w", err)
	}

	if toolsNode == nil {
		if err := graph.AddEdge(nodeModel, nodeCollect); err != nil {
			return nil, fmt.Errorf("add edge model->collect: %w", err)
		}
	} else {
		if err := graph.AddToolsNode(nodeTools, toolsNode); err != nil {
			return nil, fmt.Errorf("add tools node: %w", err)
		}

		branch := compose.NewGraphBranch(
			func(ctx context.Context, out *schema.Message) (string, error) {
				if out != nil && len(out.ToolCalls) > 0 {
					return nodeTools, nil
				}
				return nodeCollect, nil
			},
			map[string]bool{
				nodeTools:   true,
				nodeCollect: true,
			},
		)
		if err := graph.AddBranch(nodeModel, branch); err != nil {
			return nil, fmt.Errorf("add model branch: %w", err)
		}
		if err := graph.AddEdge(nodeTools, nodeModel); err != nil {
			return nil, fmt.Errorf("add edge tools->model: %w", err)
		}
	}

	if err := graph.AddEdge(nodeCollect, compose.END); err != nil {
		return nil, fmt.Errorf("add edge collect->end: %w", err)
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName(graphName),
		compose.WithMaxRunSteps(maxSteps),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return runner, nil
}
