package contract

import "errors"

var (
	ErrUnsupportedModel     = errors.New("unsupported model")
	ErrAgentInvocation      = errors.New("agent invocation failed")
	ErrIdentificationPolicy = errors.New("identification policy not recognized")
	ErrModelInvoke          = errors.New("model invoke failed")
	ErrValidation           = errors.New("validation failed")
	ErrUserNotFound         = errors.New("user not found")
)
