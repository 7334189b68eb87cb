package butler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	llmx "github.com/JRealValdes/jarvis/agent/llm"
	memoryx "github.com/JRealValdes/jarvis/agent/memory"
	toolx "github.com/JRealValdes/jarvis/agent/tool"
)

type fakeChatModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
	boundTo   []*schema.ToolInfo
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := make([]*schema.Message, len(input))
	copy(copied, input)
	f.inputs = append(f.inputs, copied)

	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

type fakeToolCallingModel struct {
	*fakeChatModel
}

func (f fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.boundTo = tools
	return f, nil
}

func localTools(t *testing.T) Option {
	t.Helper()
	tools, err := toolx.Local(toolx.Options{})
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}
	return WithTools(tools...)
}

func TestInvokeWithoutMemory(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{schema.AssistantMessage("A su servicio.", nil)}}
	agent, err := New(context.Background(), fake)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := agent.Invoke(context.Background(), []contractx.Message{
		contractx.SystemMessage("eres un mayordomo"),
		contractx.UserMessage("hola"),
	}, contractx.InvokeConfig{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if len(res.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %#v", res.Messages)
	}
	last := res.Messages[2]
	if last.Kind != contractx.KindAssistant || last.Text != "A su servicio." {
		t.Fatalf("unexpected last message: %#v", last)
	}
	if len(fake.inputs) != 1 || len(fake.inputs[0]) != 2 {
		t.Fatalf("unexpected model inputs: %#v", fake.inputs)
	}
}

func TestInvokeRunsToolLoop(t *testing.T) {
	t.Parallel()

	fake := fakeToolCallingModel{&fakeChatModel{
		responses: []*schema.Message{
			schema.AssistantMessage("", []schema.ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: schema.FunctionCall{
					Name:      toolx.ToolCalculate,
					Arguments: `{"expression":"2+2"}`,
				},
			}}),
			schema.AssistantMessage("Son 4, señor.", nil),
		},
	}}

	agent, err := New(context.Background(), fake, localTools(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := agent.Invoke(context.Background(), []contractx.Message{
		contractx.UserMessage("cuanto es 2+2"),
	}, contractx.InvokeConfig{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if len(res.Messages) != 4 {
		t.Fatalf("expected user, call, result, answer; got %#v", res.Messages)
	}

	call := res.Messages[1]
	if call.Kind != contractx.KindAssistant || len(call.ToolCalls) != 1 {
		t.Fatalf("unexpected call message: %#v", call)
	}
	if call.ToolCalls[0].Name != toolx.ToolCalculate || call.ToolCalls[0].Args["expression"] != "2+2" {
		t.Fatalf("unexpected tool call: %#v", call.ToolCalls[0])
	}

	result := res.Messages[2]
	if result.Kind != contractx.KindToolResult || result.ToolName != toolx.ToolCalculate || result.ToolCallID != "call_1" {
		t.Fatalf("unexpected tool result: %#v", result)
	}
	if !strings.Contains(result.Text, "4") {
		t.Fatalf("unexpected tool output: %q", result.Text)
	}

	if res.Messages[3].Text != "Son 4, señor." {
		t.Fatalf("unexpected answer: %#v", res.Messages[3])
	}
	if len(fake.boundTo) != 2 {
		t.Fatalf("expected calculate and current_date_time bound, got %d tools", len(fake.boundTo))
	}
	if len(fake.inputs) != 2 || len(fake.inputs[1]) != 3 {
		t.Fatalf("second model call should see user, call and result: %#v", fake.inputs)
	}
}

func TestInvokeIgnoresToolsForPlainModel(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{schema.AssistantMessage("Hola.", nil)}}
	agent, err := New(context.Background(), fake, localTools(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := agent.Invoke(context.Background(), []contractx.Message{contractx.UserMessage("hola")}, contractx.InvokeConfig{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := res.Messages[len(res.Messages)-1].Text; got != "Hola." {
		t.Fatalf("unexpected answer: %q", got)
	}
}

func TestInvokeRemembersThread(t *testing.T) {
	t.Parallel()

	store := memoryx.NewInProcessStore()
	fake := &fakeChatModel{responses: []*schema.Message{
		schema.AssistantMessage("Primera.", nil),
		schema.AssistantMessage("Segunda.", nil),
		schema.AssistantMessage("Nueva.", nil),
	}}
	agent, err := New(context.Background(), fake, WithMemory(store))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	cfg := contractx.InvokeConfig{ThreadID: "javi"}

	if _, err := agent.Invoke(ctx, []contractx.Message{contractx.UserMessage("uno")}, cfg); err != nil {
		t.Fatalf("first Invoke() error = %v", err)
	}
	res, err := agent.Invoke(ctx, []contractx.Message{contractx.UserMessage("dos")}, cfg)
	if err != nil {
		t.Fatalf("second Invoke() error = %v", err)
	}

	if len(res.Messages) != 4 {
		t.Fatalf("expected full transcript of 4 messages, got %#v", res.Messages)
	}
	if len(fake.inputs[1]) != 3 {
		t.Fatalf("second call should include history, got %d messages", len(fake.inputs[1]))
	}

	if err := agent.Forget(ctx, "javi"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	res, err = agent.Invoke(ctx, []contractx.Message{contractx.UserMessage("tres")}, cfg)
	if err != nil {
		t.Fatalf("third Invoke() error = %v", err)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("expected a fresh transcript after Forget, got %#v", res.Messages)
	}
}

func TestInvokeWrapsModelFailure(t *testing.T) {
	t.Parallel()

	agent, err := New(context.Background(), &fakeChatModel{err: errors.New("provider down")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = agent.Invoke(context.Background(), []contractx.Message{contractx.UserMessage("hola")}, contractx.InvokeConfig{})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestForgetWithoutMemory(t *testing.T) {
	t.Parallel()

	agent, err := New(context.Background(), &fakeChatModel{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := agent.Forget(context.Background(), "t1"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if agent.HasMemory() {
		t.Fatal("agent without store reports memory")
	}
}

func TestFactoryRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	f, err := NewFactory(Deps{LLM: llmx.Config{MaxCompletionToken: 16}})
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	_, err = f.Build(context.Background(), contractx.ModelKind("llama"))
	if !errors.Is(err, contractx.ErrUnsupportedModel) {
		t.Fatalf("expected ErrUnsupportedModel, got %v", err)
	}
	if len(f.Builders()) != 5 {
		t.Fatalf("expected a builder per model kind, got %d", len(f.Builders()))
	}
}

func TestFactoryMissingKeyFailsBuild(t *testing.T) {
	t.Parallel()

	f, err := NewFactory(Deps{LLM: llmx.Config{MaxCompletionToken: 16, GPT35Model: "gpt-3.5-turbo"}})
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	_, err = f.Build(context.Background(), contractx.ModelGPT35)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFactoryMemoryOutlivesAgents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shared := memoryx.NewInProcessStore()
	f, err := NewFactory(Deps{LLM: llmx.Config{MaxCompletionToken: 16}, Memory: shared})
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}

	seed := []*schema.Message{schema.UserMessage("hola")}
	for _, kind := range []contractx.ModelKind{contractx.ModelGPT35, contractx.ModelGPT4} {
		if err := f.memory[kind].Save(ctx, "t1", seed); err != nil {
			t.Fatalf("Save(%s) error = %v", kind, err)
		}
	}
	if _, ok := f.memory[contractx.ModelZephyr]; ok {
		t.Fatal("memoryless kinds must not get a store")
	}

	if err := f.ForgetThread(ctx, contractx.ModelGPT35, "t1"); err != nil {
		t.Fatalf("ForgetThread() error = %v", err)
	}
	if msgs, _ := f.memory[contractx.ModelGPT35].Load(ctx, "t1"); len(msgs) != 0 {
		t.Fatalf("gpt35 transcript survived: %#v", msgs)
	}
	if msgs, _ := f.memory[contractx.ModelGPT4].Load(ctx, "t1"); len(msgs) != 1 {
		t.Fatalf("forgetting one kind must not touch another: %#v", msgs)
	}
	if err := f.ForgetThread(ctx, contractx.ModelZephyr, "t1"); err != nil {
		t.Fatalf("ForgetThread() on a memoryless kind error = %v", err)
	}

	if err := f.ForgetAll(ctx); err != nil {
		t.Fatalf("ForgetAll() error = %v", err)
	}
	if msgs, _ := shared.Load(ctx, "chatgpt_4/t1"); len(msgs) != 0 {
		t.Fatalf("ForgetAll() left %#v", msgs)
	}
}
