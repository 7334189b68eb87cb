package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/JRealValdes/jarvis/agent/agents/butler"
	contractx "github.com/JRealValdes/jarvis/agent/contract"
	memoryx "github.com/JRealValdes/jarvis/agent/memory"
	statex "github.com/JRealValdes/jarvis/agent/state"
)

type recordingChatModel struct {
	mu     sync.Mutex
	inputs [][]*schema.Message
}

func (m *recordingChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]*schema.Message, len(input))
	copy(copied, input)
	m.inputs = append(m.inputs, copied)
	return schema.AssistantMessage("A su servicio.", nil), nil
}

func (m *recordingChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (m *recordingChatModel) firstInput(t *testing.T) []*schema.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		t.Fatal("model was never called")
	}
	return m.inputs[0]
}

// scopedMemory mirrors the factory: one partition of a shared store per
// memory kind.
type scopedMemory struct {
	stores map[contractx.ModelKind]memoryx.Store
}

func newScopedMemory(shared memoryx.Store) *scopedMemory {
	return &scopedMemory{stores: map[contractx.ModelKind]memoryx.Store{
		contractx.ModelGPT35: memoryx.Scoped(shared, string(contractx.ModelGPT35)),
		contractx.ModelGPT4:  memoryx.Scoped(shared, string(contractx.ModelGPT4)),
	}}
}

func (m *scopedMemory) ForgetThread(ctx context.Context, model contractx.ModelKind, threadID string) error {
	if store, ok := m.stores[model]; ok {
		return store.Forget(ctx, threadID)
	}
	return nil
}

func (m *scopedMemory) ForgetAll(ctx context.Context) error {
	for _, store := range m.stores {
		if err := store.Clear(ctx, ""); err != nil {
			return err
		}
	}
	return nil
}

// butlerBuilds builds real butler agents over the shared memory and keeps
// every chat model it hands out.
type butlerBuilds struct {
	memory *scopedMemory

	mu     sync.Mutex
	models []*recordingChatModel
}

func (b *butlerBuilds) builders() map[contractx.ModelKind]contractx.AgentBuilder {
	out := make(map[contractx.ModelKind]contractx.AgentBuilder)
	for kind, store := range b.memory.stores {
		out[kind] = func(ctx context.Context) (contractx.Agent, error) {
			m := &recordingChatModel{}
			b.mu.Lock()
			b.models = append(b.models, m)
			b.mu.Unlock()
			return butler.New(ctx, m, butler.WithName(string(kind)), butler.WithMemory(store))
		}
	}
	return out
}

func (b *butlerBuilds) last() *recordingChatModel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.models[len(b.models)-1]
}

func roles(msgs []*schema.Message) []schema.RoleType {
	out := make([]schema.RoleType, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}

func assertFreshOpening(t *testing.T, input []*schema.Message, want ...schema.RoleType) {
	t.Helper()
	got := roles(input)
	if len(got) != len(want) {
		t.Fatalf("opening turn = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("opening turn = %v, want %v", got, want)
		}
	}
	for _, m := range input {
		if strings.Contains(m.Content, "secreto") {
			t.Fatalf("old conversation leaked into the opening turn: %q", m.Content)
		}
	}
}

func TestResetAllDropsAgentMemory(t *testing.T) {
	t.Parallel()

	shared := memoryx.NewInProcessStore()
	builds := &butlerBuilds{memory: newScopedMemory(shared)}
	reg := newRegistryWith(t, statex.PolicyHostile, builds.builders(), builds.memory)

	ask(t, reg, contractx.ModelGPT35, "t1", "secreto 1")
	ask(t, reg, contractx.ModelGPT35, "t1", "secreto 2")

	if err := reg.ResetAll(context.Background()); err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}
	if msgs, _ := shared.Load(context.Background(), "chatgpt_3_5/t1"); len(msgs) != 0 {
		t.Fatalf("store still holds %d messages for t1", len(msgs))
	}

	ask(t, reg, contractx.ModelGPT35, "t1", "nuevo")
	assertFreshOpening(t, builds.last().firstInput(t), schema.System, schema.User)
}

func TestResetAllThenIdentifiedOpening(t *testing.T) {
	t.Parallel()

	builds := &butlerBuilds{memory: newScopedMemory(memoryx.NewInProcessStore())}
	reg := newRegistryWith(t, statex.PolicyAutomaticResponse, builds.builders(), builds.memory)

	ask(t, reg, contractx.ModelGPT4, "t1", "soy javi")
	ask(t, reg, contractx.ModelGPT4, "t1", "secreto")

	if err := reg.ResetAll(context.Background()); err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}

	ask(t, reg, contractx.ModelGPT4, "t1", "soy javi")
	ask(t, reg, contractx.ModelGPT4, "t1", "¿qué hora es?")
	assertFreshOpening(t, builds.last().firstInput(t), schema.System, schema.Assistant, schema.User)
}

func TestResetThreadForgetsWithoutCachedAgent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shared := memoryx.NewInProcessStore()

	// Two registries over one store stand in for a restart with a
	// persistent backend.
	before := &butlerBuilds{memory: newScopedMemory(shared)}
	ask(t, newRegistryWith(t, statex.PolicyHostile, before.builders(), before.memory), contractx.ModelGPT35, "t1", "secreto")
	if msgs, _ := shared.Load(ctx, "chatgpt_3_5/t1"); len(msgs) == 0 {
		t.Fatal("expected a stored transcript")
	}

	after := &butlerBuilds{memory: newScopedMemory(shared)}
	reg := newRegistryWith(t, statex.PolicyHostile, after.builders(), after.memory)
	if err := reg.ResetThread(ctx, contractx.ModelGPT35, "t1"); err != nil {
		t.Fatalf("ResetThread() error = %v", err)
	}
	if msgs, _ := shared.Load(ctx, "chatgpt_3_5/t1"); len(msgs) != 0 {
		t.Fatalf("store still holds %d messages for t1", len(msgs))
	}

	ask(t, reg, contractx.ModelGPT35, "t1", "nuevo")
	assertFreshOpening(t, after.last().firstInput(t), schema.System, schema.User)
}

func TestResetThreadAllModelsCoversUncachedKinds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shared := memoryx.NewInProcessStore()

	before := &butlerBuilds{memory: newScopedMemory(shared)}
	old := newRegistryWith(t, statex.PolicyHostile, before.builders(), before.memory)
	ask(t, old, contractx.ModelGPT35, "t1", "secreto")
	ask(t, old, contractx.ModelGPT4, "t1", "secreto")
	ask(t, old, contractx.ModelGPT4, "t2", "secreto")

	after := &butlerBuilds{memory: newScopedMemory(shared)}
	reg := newRegistryWith(t, statex.PolicyHostile, after.builders(), after.memory)
	if err := reg.ResetThreadAllModels(ctx, "t1"); err != nil {
		t.Fatalf("ResetThreadAllModels() error = %v", err)
	}

	for _, key := range []string{"chatgpt_3_5/t1", "chatgpt_4/t1"} {
		if msgs, _ := shared.Load(ctx, key); len(msgs) != 0 {
			t.Fatalf("%s still holds %d messages", key, len(msgs))
		}
	}
	if msgs, _ := shared.Load(ctx, "chatgpt_4/t2"); len(msgs) == 0 {
		t.Fatal("other threads must keep their transcripts")
	}
}
