// Command jarvis-cli talks to Jarvis from the terminal.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	appx "github.com/JRealValdes/jarvis/app"
	configx "github.com/JRealValdes/jarvis/pkg/config"
	logx "github.com/JRealValdes/jarvis/pkg/logger"
)

var (
	threadFlag = flag.String("thread", "", "conversation thread id (random when empty)")
	modelFlag  = flag.String("model", "", "model kind, defaults to JARVIS_DEFAULT_MODEL")
)

func main() {
	// configx parses the command line, including -env.
	logCfg := configx.MustNew[logx.Config]("LOG")
	logCfg.PrettyFormat = true
	logx.InitWriter(os.Stderr, *logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := appx.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start jarvis")
	}
	defer app.Close()

	model := app.DefaultModel
	if *modelFlag != "" {
		if model, err = contractx.ParseModelKind(*modelFlag); err != nil {
			log.Fatal().Err(err).Msg("invalid model")
		}
	}
	thread := strings.TrimSpace(*threadFlag)
	if thread == "" {
		thread = uuid.NewString()
	}

	if err := repl(ctx, os.Stdin, os.Stdout, func(ctx context.Context, prompt string) ([]string, error) {
		return app.Sessions.Ask(ctx, model, thread, prompt, nil)
	}); err != nil {
		log.Fatal().Err(err).Msg("cli stopped")
	}
}

type askFunc func(ctx context.Context, prompt string) ([]string, error)

func repl(ctx context.Context, in io.Reader, out io.Writer, ask askFunc) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Tú: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if isExit(prompt) {
			fmt.Fprintln(out, "Jarvis: Hasta luego.")
			return nil
		}

		lines, err := ask(ctx, prompt)
		if err != nil {
			fmt.Fprintf(out, "Jarvis: %v\n", err)
			continue
		}
		for _, line := range lines {
			fmt.Fprintf(out, "Jarvis: %s\n", line)
		}
		if isFarewell(prompt) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func isExit(prompt string) bool {
	switch strings.ToLower(prompt) {
	case "salir", "exit", "quit":
		return true
	}
	return false
}

// isFarewell matches "eso es todo, Jarvis" style endings; the farewell is
// still sent so Jarvis can answer it.
func isFarewell(prompt string) bool {
	p := strings.ToLower(prompt)
	return strings.Contains(p, "eso es todo") && strings.Contains(p, "jarvis")
}
