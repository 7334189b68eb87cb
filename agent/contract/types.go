package contract

import (
	"fmt"
	"strings"
)

type ModelKind string

const (
	ModelGPT35   ModelKind = "chatgpt_3_5"
	ModelGPT4    ModelKind = "chatgpt_4"
	ModelZephyr  ModelKind = "zephyr"
	ModelMistral ModelKind = "mistral"
	ModelDoubao  ModelKind = "doubao"
)

var knownModels = []ModelKind{ModelGPT35, ModelGPT4, ModelZephyr, ModelMistral, ModelDoubao}

// ParseModelKind accepts both the wire value ("chatgpt_3_5") and the
// enum-style name ("GPT_3_5") used by older clients.
func ParseModelKind(raw string) (ModelKind, error) {
	v := strings.TrimSpace(raw)
	for _, m := range knownModels {
		if strings.EqualFold(v, string(m)) {
			return m, nil
		}
	}
	switch strings.ToUpper(v) {
	case "GPT_3_5":
		return ModelGPT35, nil
	case "GPT_4":
		return ModelGPT4, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedModel, raw)
}

// HasMemory reports whether the model keeps cross-turn memory keyed by thread.
func (m ModelKind) HasMemory() bool {
	return m == ModelGPT35 || m == ModelGPT4
}

// UserRecord identifies a known caller. AccessIdentifier holds the hash,
// never the plain identifier.
type UserRecord struct {
	AccessIdentifier string `json:"-"`
	Username         string `json:"username"`
	DisplayName      string `json:"display_name"`
	HonorificName    string `json:"honorific_name"`
	IsFemale         bool   `json:"is_female"`
	IsAdmin          bool   `json:"is_admin"`
}

type MessageKind int

const (
	KindSystem MessageKind = iota
	KindUser
	KindAssistant
	KindToolResult
)

func (k MessageKind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindUser:
		return "user"
	case KindAssistant:
		return "assistant"
	case KindToolResult:
		return "tool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is one record of a conversation. Which fields are meaningful
// depends on Kind:
//   - System, User: Text
//   - Assistant: Text and/or ToolCalls
//   - ToolResult: ToolName, ToolCallID, Text (the result content)
type Message struct {
	Kind       MessageKind
	Text       string
	ToolCalls  []ToolCall
	ToolName   string
	ToolCallID string
}

type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

func SystemMessage(text string) Message {
	return Message{Kind: KindSystem, Text: text}
}

func UserMessage(text string) Message {
	return Message{Kind: KindUser, Text: text}
}

func AssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Kind: KindAssistant, Text: text, ToolCalls: calls}
}

func ToolResultMessage(toolName, callID, content string) Message {
	return Message{Kind: KindToolResult, ToolName: toolName, ToolCallID: callID, Text: content}
}

// InvokeConfig scopes an invocation. ThreadID is empty for models
// without memory.
type InvokeConfig struct {
	ThreadID string
}

// Result carries the full accumulated message sequence for the thread.
type Result struct {
	Messages []Message
}
