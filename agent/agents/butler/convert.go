package butler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

func toSchema(msgs []contractx.Message) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Kind {
		case contractx.KindSystem:
			out = append(out, schema.SystemMessage(msg.Text))
		case contractx.KindUser:
			out = append(out, schema.UserMessage(msg.Text))
		case contractx.KindAssistant:
			calls, err := toSchemaCalls(msg.ToolCalls)
			if err != nil {
				return nil, err
			}
			out = append(out, schema.AssistantMessage(msg.Text, calls))
		case contractx.KindToolResult:
			out = append(out, schema.ToolMessage(msg.Text, msg.ToolCallID))
		default:
			return nil, fmt.Errorf("%w: unknown message kind %s", contractx.ErrValidation, msg.Kind)
		}
	}
	return out, nil
}

func toSchemaCalls(calls []contractx.ToolCall) ([]schema.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for _, call := range calls {
		args := "{}"
		if len(call.Args) > 0 {
			raw, err := json.Marshal(call.Args)
			if err != nil {
				return nil, fmt.Errorf("%w: marshal args for tool=%s: %v", contractx.ErrValidation, call.Name, err)
			}
			args = string(raw)
		}
		out = append(out, schema.ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      call.Name,
				Arguments: args,
			},
		})
	}
	return out, nil
}

// fromSchema maps provider messages back to the closed variant. Tool
// results are named after the assistant call they answer.
func fromSchema(msgs []*schema.Message) []contractx.Message {
	callNames := make(map[string]string)
	out := make([]contractx.Message, 0, len(msgs))

	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			out = append(out, contractx.SystemMessage(msg.Content))
		case schema.User:
			out = append(out, contractx.UserMessage(msg.Content))
		case schema.Assistant:
			calls := make([]contractx.ToolCall, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				callNames[tc.ID] = tc.Function.Name
				calls = append(calls, contractx.ToolCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: decodeArgs(tc.Function.Arguments),
				})
			}
			out = append(out, contractx.AssistantMessage(msg.Content, calls...))
		case schema.Tool:
			out = append(out, contractx.ToolResultMessage(callNames[msg.ToolCallID], msg.ToolCallID, msg.Content))
		}
	}
	return out
}

// decodeArgs keeps undecodable arguments visible under a single key.
func decodeArgs(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"input": raw}
	}
	if len(args) == 0 {
		return nil
	}
	return args
}
