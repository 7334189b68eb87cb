// Package users provides user registry backends. Identifiers are stored
// hashed; plain identifiers only pass through Registration.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	"github.com/JRealValdes/jarvis/agent/identity"
)

var (
	ErrDuplicateIdentifier = errors.New("identification already registered")
	ErrDebugDisabled       = errors.New("user listing is disabled outside debug mode")
)

// Registration is the out-of-band input used to create a user.
type Registration struct {
	Username       string `yaml:"username"`
	Identification string `yaml:"identification"`
	DisplayName    string `yaml:"display_name"`
	HonorificName  string `yaml:"honorific_name"`
	IsFemale       bool   `yaml:"is_female"`
	IsAdmin        bool   `yaml:"is_admin"`
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("%w: username is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(r.Identification) == "" {
		return fmt.Errorf("%w: identification is required", contractx.ErrValidation)
	}
	if !identity.IsToken(strings.TrimSpace(r.Identification)) {
		return fmt.Errorf("%w: identification %q must not contain spaces or punctuation", contractx.ErrValidation, r.Identification)
	}
	if strings.TrimSpace(r.DisplayName) == "" {
		return fmt.Errorf("%w: display name is required", contractx.ErrValidation)
	}
	return nil
}

// Record converts the registration into the stored form.
func (r Registration) Record() contractx.UserRecord {
	honorific := strings.TrimSpace(r.HonorificName)
	if honorific == "" {
		honorific = strings.TrimSpace(r.DisplayName)
	}
	return contractx.UserRecord{
		AccessIdentifier: identity.Hash(strings.TrimSpace(r.Identification)),
		Username:         strings.TrimSpace(r.Username),
		DisplayName:      strings.TrimSpace(r.DisplayName),
		HonorificName:    honorific,
		IsFemale:         r.IsFemale,
		IsAdmin:          r.IsAdmin,
	}
}

// Store is the full registry surface used by the registration tooling.
type Store interface {
	contractx.UserRegistry
	Insert(ctx context.Context, reg Registration) error
	DeleteByUsername(ctx context.Context, username string) (bool, error)
	DeleteByIdentification(ctx context.Context, identification string) (bool, error)
	List(ctx context.Context) ([]contractx.UserRecord, error)
	Close() error
}
