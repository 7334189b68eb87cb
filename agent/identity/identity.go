// Package identity resolves a caller's self-declared identity ("soy <token>")
// against a user registry.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

// Matches "soy <token>" case-insensitively. The token is a run of
// characters that are neither whitespace nor punctuation, so quotes or
// brackets around it are skipped.
var (
	selfIdentificationPattern = regexp.MustCompile(`(?i)\bsoy\s+\p{P}*([^\s\p{P}]+)`)
	tokenPattern              = regexp.MustCompile(`^[^\s\p{P}]+$`)
)

// IsToken reports whether identifier can ever be extracted from a prompt.
func IsToken(identifier string) bool {
	return tokenPattern.MatchString(identifier)
}

// Hash returns the hex SHA-256 of the lower-cased identifier. Stored
// identifiers use the same function, so lookups are case-insensitive.
func Hash(identifier string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(identifier)))
	return hex.EncodeToString(sum[:])
}

// ExtractToken returns the first claimed identifier in prompt.
func ExtractToken(prompt string) (string, bool) {
	match := selfIdentificationPattern.FindStringSubmatch(prompt)
	if match == nil {
		return "", false
	}
	token := strings.TrimSpace(match[1])
	if token == "" {
		return "", false
	}
	return token, true
}

type Resolver struct {
	users contractx.UserRegistry
}

func NewResolver(users contractx.UserRegistry) (*Resolver, error) {
	if users == nil {
		return nil, errors.New("user registry is required")
	}
	return &Resolver{users: users}, nil
}

// Resolve returns the user the prompt identifies, or nil when the prompt
// carries no identification or the claimed identifier is unknown. Only
// registry failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, prompt string) (*contractx.UserRecord, error) {
	token, ok := ExtractToken(prompt)
	if !ok {
		return nil, nil
	}

	user, err := r.users.FindByHash(ctx, Hash(token))
	if err != nil {
		if errors.Is(err, contractx.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}
