// Package normalize flattens an agent turn into display lines.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

const DefaultFallback = "Lo siento, señor. No tengo respuesta para su petición."

type Normalizer struct {
	quiet    map[string]struct{}
	fallback string
}

type Option func(*Normalizer)

// WithQuietTools suppresses successful results of the named tools.
func WithQuietTools(names ...string) Option {
	return func(n *Normalizer) {
		for _, name := range names {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				n.quiet[trimmed] = struct{}{}
			}
		}
	}
}

func WithFallback(line string) Option {
	return func(n *Normalizer) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			n.fallback = trimmed
		}
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		quiet:    make(map[string]struct{}),
		fallback: DefaultFallback,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Normalize renders the records that follow since, the user record that
// opened this turn. A nil since renders the whole sequence. The result is
// never empty.
func (n *Normalizer) Normalize(raw []contractx.Message, since *contractx.Message) []string {
	var lines []string
	for _, msg := range raw[turnStart(raw, since):] {
		switch msg.Kind {
		case contractx.KindAssistant:
			if text := strings.TrimSpace(msg.Text); text != "" {
				lines = append(lines, msg.Text)
			}
			for _, call := range msg.ToolCalls {
				lines = append(lines, announceToolCall(call))
			}
		case contractx.KindToolResult:
			if n.suppressed(msg) {
				continue
			}
			lines = append(lines, fmt.Sprintf("Resultado de la herramienta '%s': %s", msg.ToolName, msg.Text))
		case contractx.KindSystem, contractx.KindUser:
		}
	}

	if len(lines) == 0 {
		return []string{n.fallback}
	}
	return lines
}

func (n *Normalizer) suppressed(msg contractx.Message) bool {
	if _, ok := n.quiet[msg.ToolName]; !ok {
		return false
	}
	return !strings.Contains(strings.ToLower(msg.Text), "error")
}

// turnStart returns the index right after the last user record matching
// since. Without a match it falls back to the last user record, and to
// the whole sequence when there is none.
func turnStart(raw []contractx.Message, since *contractx.Message) int {
	if since == nil {
		return 0
	}
	lastUser := -1
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i].Kind != contractx.KindUser {
			continue
		}
		if raw[i].Text == since.Text {
			return i + 1
		}
		if lastUser < 0 {
			lastUser = i
		}
	}
	return lastUser + 1
}

func announceToolCall(call contractx.ToolCall) string {
	if len(call.Args) == 0 {
		return fmt.Sprintf("Usando la herramienta '%s' sin argumentos.", call.Name)
	}

	keys := make([]string, 0, len(call.Args))
	for k := range call.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, call.Args[k]))
	}
	return fmt.Sprintf("Usando la herramienta '%s' con argumentos: %s", call.Name, strings.Join(pairs, ", "))
}
