// Package state holds the per-thread chat lifecycle and the single
// function that advances it.
package state

import (
	"fmt"
	"strings"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

type ChatState int

const (
	NotInitialized ChatState = iota
	Welcome
	StartingChat
	Initialized
)

func (s ChatState) String() string {
	switch s {
	case NotInitialized:
		return "NOT_INITIALIZED"
	case Welcome:
		return "WELCOME"
	case StartingChat:
		return "STARTING_CHAT"
	case Initialized:
		return "INITIALIZED"
	default:
		return fmt.Sprintf("ChatState(%d)", int(s))
	}
}

// Policy decides what happens while the caller stays unidentified.
type Policy string

const (
	// PolicyAutomaticResponse answers every unidentified prompt with a
	// fixed refusal and never reaches the agent.
	PolicyAutomaticResponse Policy = "automatic_response"
	// PolicyHostile lets the agent talk to the intruder under a hostile
	// persona.
	PolicyHostile Policy = "hostile_responses"
)

func ParsePolicy(raw string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(raw)))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

func (p Policy) Validate() error {
	switch p {
	case PolicyAutomaticResponse, PolicyHostile:
		return nil
	default:
		return fmt.Errorf("%w: %q", contractx.ErrIdentificationPolicy, string(p))
	}
}

// Turn is what the state machine knows about the incoming prompt.
type Turn struct {
	// Identified is true when the caller is identified after identity
	// resolution ran for this prompt.
	Identified bool
	// NewlyIdentified is true when identification happened on this prompt.
	NewlyIdentified bool
}

// Next returns the state for this turn. It is the only place chat state
// changes; INITIALIZED -> WELCOME on re-identification is the only
// backward edge.
func Next(current ChatState, turn Turn, policy Policy) (ChatState, error) {
	switch current {
	case NotInitialized:
		if turn.Identified {
			return Welcome, nil
		}
		switch policy {
		case PolicyHostile:
			return StartingChat, nil
		case PolicyAutomaticResponse:
			return NotInitialized, nil
		default:
			return current, fmt.Errorf("%w: %q", contractx.ErrIdentificationPolicy, string(policy))
		}
	case Welcome:
		return StartingChat, nil
	case StartingChat:
		return Initialized, nil
	case Initialized:
		if turn.NewlyIdentified {
			return Welcome, nil
		}
		return Initialized, nil
	default:
		return current, fmt.Errorf("%w: unknown chat state %d", contractx.ErrValidation, int(current))
	}
}
