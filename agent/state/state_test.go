package state

import (
	"errors"
	"testing"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

func TestNext(t *testing.T) {
	t.Parallel()

	unidentified := Turn{}
	identified := Turn{Identified: true}
	newly := Turn{Identified: true, NewlyIdentified: true}

	tests := []struct {
		name    string
		current ChatState
		turn    Turn
		policy  Policy
		want    ChatState
	}{
		{"identified leaves not initialized", NotInitialized, newly, PolicyAutomaticResponse, Welcome},
		{"identified under hostile policy", NotInitialized, newly, PolicyHostile, Welcome},
		{"automatic response stays", NotInitialized, unidentified, PolicyAutomaticResponse, NotInitialized},
		{"hostile skips welcome", NotInitialized, unidentified, PolicyHostile, StartingChat},
		{"welcome always advances", Welcome, identified, PolicyAutomaticResponse, StartingChat},
		{"starting chat always advances", StartingChat, unidentified, PolicyHostile, Initialized},
		{"initialized stays", Initialized, identified, PolicyAutomaticResponse, Initialized},
		{"initialized unidentified stays", Initialized, unidentified, PolicyHostile, Initialized},
		{"re-identification regresses", Initialized, newly, PolicyHostile, Welcome},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Next(tt.current, tt.turn, tt.policy)
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextUnknownPolicy(t *testing.T) {
	t.Parallel()

	_, err := Next(NotInitialized, Turn{}, Policy("ignore"))
	if !errors.Is(err, contractx.ErrIdentificationPolicy) {
		t.Fatalf("expected ErrIdentificationPolicy, got %v", err)
	}

	// The policy only matters while unidentified in NOT_INITIALIZED.
	got, err := Next(Welcome, Turn{}, Policy("ignore"))
	if err != nil || got != StartingChat {
		t.Fatalf("Next(Welcome) = %s, %v", got, err)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy(" Hostile_Responses ")
	if err != nil {
		t.Fatalf("ParsePolicy() error = %v", err)
	}
	if p != PolicyHostile {
		t.Fatalf("ParsePolicy() = %q", p)
	}

	if _, err := ParsePolicy("polite"); !errors.Is(err, contractx.ErrIdentificationPolicy) {
		t.Fatalf("expected ErrIdentificationPolicy, got %v", err)
	}
}

func TestNeverResettingSequence(t *testing.T) {
	t.Parallel()

	turns := []Turn{{}, {}, {Identified: true, NewlyIdentified: true}, {Identified: true}, {Identified: true}, {Identified: true}}
	want := []ChatState{NotInitialized, NotInitialized, Welcome, StartingChat, Initialized, Initialized}

	current := NotInitialized
	for i, turn := range turns {
		next, err := Next(current, turn, PolicyAutomaticResponse)
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if next != want[i] {
			t.Fatalf("turn %d: got %s, want %s", i, next, want[i])
		}
		current = next
	}
}
