// Package session drives one conversation per (model, thread): identity,
// chat lifecycle, message construction and response normalisation.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	identityx "github.com/JRealValdes/jarvis/agent/identity"
	normalizex "github.com/JRealValdes/jarvis/agent/normalize"
	promptx "github.com/JRealValdes/jarvis/agent/prompt"
	statex "github.com/JRealValdes/jarvis/agent/state"
)

// shared is what every session of a registry has in common.
type shared struct {
	resolver   *identityx.Resolver
	prompts    promptx.PromptSet
	normalizer *normalizex.Normalizer
	policy     statex.Policy
	timeout    time.Duration
}

type Session struct {
	model    contractx.ModelKind
	threadID string
	agent    contractx.Agent
	deps     *shared

	// turnMu serialises Ask; mu guards user and state for readers.
	turnMu sync.Mutex
	mu     sync.RWMutex
	user   *contractx.UserRecord
	state  statex.ChatState
}

func newSession(model contractx.ModelKind, threadID string, agent contractx.Agent, deps *shared, user *contractx.UserRecord) *Session {
	return &Session{
		model:    model,
		threadID: threadID,
		agent:    agent,
		deps:     deps,
		user:     user,
		state:    statex.NotInitialized,
	}
}

func (s *Session) Model() contractx.ModelKind { return s.model }
func (s *Session) ThreadID() string           { return s.threadID }

func (s *Session) State() statex.ChatState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns the identified caller, or nil.
func (s *Session) User() *contractx.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Ask advances the chat state for prompt and returns the lines to show.
// It never fails: agent errors come back as a single error line. hint, if
// set, identifies a not yet identified caller.
func (s *Session) Ask(ctx context.Context, prompt string, hint *contractx.UserRecord) []string {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	user := s.User()
	wasIdentified := user != nil
	if !wasIdentified {
		user = s.identify(ctx, prompt, hint)
	}

	s.mu.Lock()
	current := s.state
	next, err := statex.Next(current, statex.Turn{
		Identified:      user != nil,
		NewlyIdentified: !wasIdentified && user != nil,
	}, s.deps.policy)
	if err == nil {
		s.user = user
		s.state = next
	}
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("model", string(s.model)).Str("thread", s.threadID).Msg("chat state transition failed")
		return []string{promptx.ErrorLine(err)}
	}

	log.Debug().
		Str("model", string(s.model)).
		Str("thread", s.threadID).
		Stringer("from", current).
		Stringer("to", next).
		Bool("identified", user != nil).
		Msg("chat state")

	if current == statex.Initialized && next == statex.Welcome {
		s.forget(ctx)
	}

	var messages []contractx.Message
	switch next {
	case statex.NotInitialized:
		return []string{promptx.CannotServeLine}
	case statex.Welcome:
		return []string{promptx.WelcomeLine(user)}
	case statex.StartingChat:
		messages, err = s.openingMessages(ctx, user, prompt)
		if err != nil {
			return []string{promptx.ErrorLine(err)}
		}
	default:
		messages = []contractx.Message{contractx.UserMessage(prompt)}
	}

	return s.invoke(ctx, messages)
}

func (s *Session) identify(ctx context.Context, prompt string, hint *contractx.UserRecord) *contractx.UserRecord {
	if hint != nil {
		return hint
	}
	user, err := s.deps.resolver.Resolve(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("thread", s.threadID).Msg("identity lookup failed, treating caller as unidentified")
		return nil
	}
	return user
}

// openingMessages builds system + optional welcome echo + user.
func (s *Session) openingMessages(ctx context.Context, user *contractx.UserRecord, prompt string) ([]contractx.Message, error) {
	if user == nil {
		return []contractx.Message{
			contractx.SystemMessage(s.deps.prompts.Hostile),
			contractx.UserMessage(prompt),
		}, nil
	}

	background, err := s.deps.prompts.Background(ctx, user)
	if err != nil {
		return nil, err
	}
	return []contractx.Message{
		contractx.SystemMessage(background),
		contractx.AssistantMessage(promptx.WelcomeLine(user)),
		contractx.UserMessage(prompt),
	}, nil
}

func (s *Session) invoke(ctx context.Context, messages []contractx.Message) (lines []string) {
	cfg := contractx.InvokeConfig{}
	if s.model.HasMemory() {
		cfg.ThreadID = s.threadID
	}

	if s.deps.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", contractx.ErrAgentInvocation, r)
			log.Error().Err(err).Str("model", string(s.model)).Str("thread", s.threadID).Msg("agent panicked")
			lines = []string{promptx.ErrorLine(err)}
		}
	}()

	res, err := s.agent.Invoke(ctx, messages, cfg)
	if err != nil {
		log.Error().
			Err(fmt.Errorf("%w: %v", contractx.ErrAgentInvocation, err)).
			Str("model", string(s.model)).
			Str("thread", s.threadID).
			Msg("agent invocation failed")
		return []string{promptx.ErrorLine(err)}
	}

	since := messages[len(messages)-1]
	return s.deps.normalizer.Normalize(res.Messages, &since)
}

// forget clears agent-side memory so the next opening turn rebuilds the
// background for the new identity.
func (s *Session) forget(ctx context.Context) {
	if !s.model.HasMemory() {
		return
	}
	f, ok := s.agent.(contractx.Forgetter)
	if !ok {
		return
	}
	if err := f.Forget(ctx, s.threadID); err != nil {
		log.Warn().Err(err).Str("model", string(s.model)).Str("thread", s.threadID).Msg("forget agent memory failed")
	}
}
