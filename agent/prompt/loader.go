package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

var (
	//go:embed template/butler.txt
	butlerRaw string

	//go:embed template/hostile.txt
	hostileRaw string
)

const (
	CannotServeLine = "Me temo que no puedo servirle sin identificación."
	errorLineFormat = "Lo siento, señor. Ha ocurrido un error al procesar su petición: %s"
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Butler  string
	Hostile string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Butler:  strings.TrimSpace(butlerRaw),
		Hostile: strings.TrimSpace(hostileRaw),
	}
}

// Background renders the system instruction for the identified user.
func (p PromptSet) Background(ctx context.Context, user *contractx.UserRecord) (string, error) {
	if user == nil {
		return "", fmt.Errorf("%w: background prompt needs a user", contractx.ErrValidation)
	}

	gender := "un hombre"
	if user.IsFemale {
		gender = "una mujer"
	}

	msgs, err := einoprompt.FromMessages(schema.FString, schema.SystemMessage(p.Butler)).
		Format(ctx, map[string]any{
			"honorific": user.HonorificName,
			"gender":    gender,
		})
	if err != nil {
		return "", fmt.Errorf("format background prompt: %w", err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("%w: background prompt rendered empty", contractx.ErrValidation)
	}
	return msgs[0].Content, nil
}

// WelcomeLine greets the user with a gendered "Bienvenido/a".
func WelcomeLine(user *contractx.UserRecord) string {
	termination := "o"
	if user.IsFemale {
		termination = "a"
	}
	return fmt.Sprintf("Bienvenid%s, %s. ¿En qué puedo servirle hoy?", termination, user.DisplayName)
}

func ErrorLine(err error) string {
	return fmt.Sprintf(errorLineFormat, err.Error())
}
