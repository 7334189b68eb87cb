// Package app wires configuration, stores, agents and sessions together
// for the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JRealValdes/jarvis/agent/agents/butler"
	contractx "github.com/JRealValdes/jarvis/agent/contract"
	identityx "github.com/JRealValdes/jarvis/agent/identity"
	llmx "github.com/JRealValdes/jarvis/agent/llm"
	memoryx "github.com/JRealValdes/jarvis/agent/memory"
	sessionx "github.com/JRealValdes/jarvis/agent/session"
	statex "github.com/JRealValdes/jarvis/agent/state"
	toolx "github.com/JRealValdes/jarvis/agent/tool"
	usersx "github.com/JRealValdes/jarvis/agent/users"
	arkx "github.com/JRealValdes/jarvis/pkg/ark"
	configx "github.com/JRealValdes/jarvis/pkg/config"
	openrouterx "github.com/JRealValdes/jarvis/pkg/openrouter"
)

const (
	MemoryInProcess = "inprocess"
	MemoryUpstash   = "upstash"

	UsersSQLite   = "sqlite"
	UsersPostgres = "postgres"
)

// Config is read with the JARVIS prefix.
type Config struct {
	DefaultModel                 string        `envconfig:"DEFAULT_MODEL" default:"chatgpt_3_5"`
	IdentificationFailedProtocol string        `envconfig:"IDENTIFICATION_FAILED_PROTOCOL" default:"automatic_response"`
	QuietTools                   []string      `envconfig:"QUIET_TOOLS" default:"current_date_time"`
	MemoryBackend                string        `envconfig:"MEMORY_BACKEND" default:"inprocess"`
	UserBackend                  string        `envconfig:"USER_BACKEND" default:"sqlite"`
	InvokeTimeout                time.Duration `envconfig:"INVOKE_TIMEOUT" default:"60s"`
	HTTPAddr                     string        `envconfig:"HTTP_ADDR" default:":8000"`
}

func (c *Config) Validate() error {
	if _, err := contractx.ParseModelKind(c.DefaultModel); err != nil {
		return err
	}
	if _, err := statex.ParsePolicy(c.IdentificationFailedProtocol); err != nil {
		return err
	}
	switch strings.ToLower(c.MemoryBackend) {
	case MemoryInProcess, MemoryUpstash:
	default:
		return fmt.Errorf("%w: unknown memory backend %q", contractx.ErrValidation, c.MemoryBackend)
	}
	switch strings.ToLower(c.UserBackend) {
	case UsersSQLite, UsersPostgres:
	default:
		return fmt.Errorf("%w: unknown user backend %q", contractx.ErrValidation, c.UserBackend)
	}
	return nil
}

type App struct {
	Config       Config
	DefaultModel contractx.ModelKind
	Users        usersx.Store
	Sessions     *sessionx.Registry
}

// Load reads every config section from the environment and builds the App.
func Load(ctx context.Context) (*App, error) {
	cfg, err := configx.New[Config]("JARVIS")
	if err != nil {
		return nil, err
	}
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	arkCfg, err := configx.New[arkx.Config]("ARK")
	if err != nil {
		return nil, err
	}

	users, err := OpenUsers(ctx, cfg.UserBackend)
	if err != nil {
		return nil, err
	}

	memory, err := openMemory(cfg.MemoryBackend)
	if err != nil {
		_ = users.Close()
		return nil, err
	}

	a, err := New(ctx, *cfg, Deps{LLM: *llmCfg, Ark: *arkCfg, Users: users, Memory: memory})
	if err != nil {
		_ = users.Close()
		return nil, err
	}
	return a, nil
}

type Deps struct {
	LLM    llmx.Config
	Ark    arkx.Config
	Users  usersx.Store
	Memory memoryx.Store
}

func New(ctx context.Context, cfg Config, deps Deps) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, _ := contractx.ParseModelKind(cfg.DefaultModel)
	policy, _ := statex.ParsePolicy(cfg.IdentificationFailedProtocol)

	tools, err := toolx.Local(toolx.Options{Transcriber: transcriber(deps.LLM)})
	if err != nil {
		return nil, err
	}

	factory, err := butler.NewFactory(butler.Deps{
		LLM:    deps.LLM,
		Ark:    deps.Ark,
		Memory: deps.Memory,
		Tools:  tools,
	})
	if err != nil {
		return nil, err
	}

	resolver, err := identityx.NewResolver(deps.Users)
	if err != nil {
		return nil, err
	}

	sessions, err := sessionx.NewRegistry(sessionx.NewAgentRegistry(factory.Builders()), resolver, sessionx.Config{
		Policy:        policy,
		QuietTools:    cfg.QuietTools,
		InvokeTimeout: cfg.InvokeTimeout,
		Memory:        factory,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("default_model", string(model)).
		Str("policy", string(policy)).
		Str("memory", cfg.MemoryBackend).
		Str("users", cfg.UserBackend).
		Int("tools", len(tools)).
		Msg("jarvis ready")

	return &App{
		Config:       cfg,
		DefaultModel: model,
		Users:        deps.Users,
		Sessions:     sessions,
	}, nil
}

func (a *App) Close() error {
	if a.Users == nil {
		return nil
	}
	return a.Users.Close()
}

// OpenUsers opens the configured user registry backend.
func OpenUsers(ctx context.Context, backend string) (usersx.Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case UsersPostgres:
		pgCfg, err := configx.New[usersx.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, err
		}
		return usersx.NewPostgresStore(ctx, *pgCfg)
	case UsersSQLite, "":
		sqliteCfg, err := configx.New[usersx.SQLiteConfig]("SQLITE")
		if err != nil {
			return nil, err
		}
		return usersx.NewSQLiteStore(*sqliteCfg)
	default:
		return nil, fmt.Errorf("%w: unknown user backend %q", contractx.ErrValidation, backend)
	}
}

func openMemory(backend string) (memoryx.Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case MemoryUpstash:
		upCfg, err := configx.New[memoryx.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, err
		}
		return memoryx.NewUpstashRedisStore(*upCfg)
	case MemoryInProcess, "":
		return memoryx.NewInProcessStore(), nil
	default:
		return nil, errors.New("unknown memory backend " + backend)
	}
}

// transcriber enables speech_to_text when an OpenAI key is configured.
func transcriber(cfg llmx.Config) toolx.Transcriber {
	client := openrouterx.NewClient(openrouterx.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	if client == nil {
		return nil
	}
	return toolx.NewWhisperTranscriber(client, cfg.WhisperModel)
}
