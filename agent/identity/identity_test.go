package identity

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

type fakeRegistry struct {
	users map[string]contractx.UserRecord
	err   error
	calls []string
}

func (f *fakeRegistry) FindByHash(ctx context.Context, hashedID string) (*contractx.UserRecord, error) {
	f.calls = append(f.calls, hashedID)
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[hashedID]
	if !ok {
		return nil, contractx.ErrUserNotFound
	}
	return &u, nil
}

func newRegistry(tokens ...string) *fakeRegistry {
	r := &fakeRegistry{users: map[string]contractx.UserRecord{}}
	for _, tok := range tokens {
		r.users[Hash(tok)] = contractx.UserRecord{Username: tok, DisplayName: tok}
	}
	return r
}

func TestHashIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	if Hash("Javi") != Hash("javi") || Hash("JAVI") != Hash("javi") {
		t.Fatal("hash must ignore case")
	}
	if Hash("javi") == Hash("ana") {
		t.Fatal("distinct identifiers must hash differently")
	}
	if got := Hash("javi"); len(got) != 64 {
		t.Fatalf("expected hex sha256, got %q", got)
	}
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prompt string
		token  string
		ok     bool
	}{
		{prompt: "soy javi", token: "javi", ok: true},
		{prompt: "Hola, Soy Javi.", token: "Javi", ok: true},
		{prompt: "SOY ana, ¿qué hora es?", token: "ana", ok: true},
		{prompt: "soy javi y luego soy ana", token: "javi", ok: true},
		{prompt: "¿qué hora es?", ok: false},
		{prompt: "insoy javi", ok: false},
		{prompt: "soy", ok: false},
		{prompt: `soy "javi"`, token: "javi", ok: true},
		{prompt: "soy (javi)", token: "javi", ok: true},
		{prompt: "soy «Ana», encantada", token: "Ana", ok: true},
		{prompt: "soy javi.real", token: "javi", ok: true},
		{prompt: "soy -- ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			token, ok := ExtractToken(tt.prompt)
			if ok != tt.ok || token != tt.token {
				t.Fatalf("ExtractToken(%q) = (%q, %v), want (%q, %v)", tt.prompt, token, ok, tt.token, tt.ok)
			}
		})
	}
}

func TestResolveKnownUser(t *testing.T) {
	t.Parallel()

	reg := newRegistry("javi")
	r, err := NewResolver(reg)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	user, err := r.Resolve(context.Background(), "Buenas, soy JAVI")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if user == nil || user.Username != "javi" {
		t.Fatalf("unexpected user: %#v", user)
	}
}

func TestResolveUsesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	reg := newRegistry("ana")
	r, _ := NewResolver(reg)

	user, err := r.Resolve(context.Background(), "soy javi, no, soy ana")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if user != nil {
		t.Fatalf("expected absent user, got %#v", user)
	}
	if len(reg.calls) != 1 || reg.calls[0] != Hash("javi") {
		t.Fatalf("expected a single lookup for javi, got %v", reg.calls)
	}
}

func TestResolveFalsePositiveIsAbsent(t *testing.T) {
	t.Parallel()

	r, _ := NewResolver(newRegistry("javi"))
	user, err := r.Resolve(context.Background(), "soy de Madrid")
	if err != nil || user != nil {
		t.Fatalf("Resolve() = (%#v, %v), want (nil, nil)", user, err)
	}
}

func TestResolveNoMarkerSkipsLookup(t *testing.T) {
	t.Parallel()

	reg := newRegistry("javi")
	r, _ := NewResolver(reg)
	user, err := r.Resolve(context.Background(), "¿qué hora es?")
	if err != nil || user != nil {
		t.Fatalf("Resolve() = (%#v, %v), want (nil, nil)", user, err)
	}
	if len(reg.calls) != 0 {
		t.Fatalf("expected no lookups, got %v", reg.calls)
	}
}

func TestResolveRegistryFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	r, _ := NewResolver(&fakeRegistry{err: boom})
	_, err := r.Resolve(context.Background(), "soy javi")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped registry error, got %v", err)
	}
}

func TestNewResolverRequiresRegistry(t *testing.T) {
	t.Parallel()

	if _, err := NewResolver(nil); err == nil {
		t.Fatal("expected error for nil registry")
	}
}

func TestIsToken(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"javi", "JAVI", "ana1", "josé"} {
		if !IsToken(id) {
			t.Errorf("IsToken(%q) = false, want true", id)
		}
	}
	for _, id := range []string{"", "javi.real", "javi real", `"javi"`, "ana!"} {
		if IsToken(id) {
			t.Errorf("IsToken(%q) = true, want false", id)
		}
	}
}
