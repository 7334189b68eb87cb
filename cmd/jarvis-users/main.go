// Command jarvis-users manages the user registry out of band.
//
//	jarvis-users -add users.yaml
//	jarvis-users -delete-user jreal
//	jarvis-users -delete-id javi
//	jarvis-users -list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	appx "github.com/JRealValdes/jarvis/app"
	usersx "github.com/JRealValdes/jarvis/agent/users"
	configx "github.com/JRealValdes/jarvis/pkg/config"
	_ "github.com/JRealValdes/jarvis/pkg/logger/autoload"
)

var (
	addFlag        = flag.String("add", "", "YAML file with users to register")
	deleteUserFlag = flag.String("delete-user", "", "delete every user with this username")
	deleteIDFlag   = flag.String("delete-id", "", "delete the user with this identification")
	listFlag       = flag.Bool("list", false, "list registered users (debug backends only)")
)

type backendConfig struct {
	UserBackend string `envconfig:"USER_BACKEND" default:"sqlite"`
}

func main() {
	cfg := configx.MustNew[backendConfig]("JARVIS")
	ctx := context.Background()

	store, err := appx.OpenUsers(ctx, cfg.UserBackend)
	if err != nil {
		log.Fatal().Err(err).Msg("open user registry")
	}
	defer store.Close()

	if err := run(ctx, store, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("jarvis-users failed")
	}
}

func run(ctx context.Context, store usersx.Store, out io.Writer) error {
	switch {
	case *addFlag != "":
		f, err := os.Open(*addFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		return addUsers(ctx, store, f, out)
	case *deleteUserFlag != "":
		ok, err := store.DeleteByUsername(ctx, *deleteUserFlag)
		return report(out, ok, err, "username "+*deleteUserFlag)
	case *deleteIDFlag != "":
		ok, err := store.DeleteByIdentification(ctx, *deleteIDFlag)
		return report(out, ok, err, "identification")
	case *listFlag:
		return listUsers(ctx, store, out)
	default:
		flag.Usage()
		return nil
	}
}

type registrationFile struct {
	Users []usersx.Registration `yaml:"users"`
}

// addUsers registers every entry; duplicates are reported and skipped.
func addUsers(ctx context.Context, store usersx.Store, in io.Reader, out io.Writer) error {
	var file registrationFile
	if err := yaml.NewDecoder(in).Decode(&file); err != nil {
		return fmt.Errorf("decode registrations: %w", err)
	}

	for _, reg := range file.Users {
		err := store.Insert(ctx, reg)
		switch {
		case errors.Is(err, usersx.ErrDuplicateIdentifier):
			fmt.Fprintf(out, "skipped %s: identification already registered\n", reg.Username)
		case err != nil:
			return fmt.Errorf("insert %s: %w", reg.Username, err)
		default:
			fmt.Fprintf(out, "added %s\n", reg.Username)
		}
	}
	return nil
}

func listUsers(ctx context.Context, store usersx.Store, out io.Writer) error {
	list, err := store.List(ctx)
	if err != nil {
		return err
	}
	return yaml.NewEncoder(out).Encode(list)
}

func report(out io.Writer, deleted bool, err error, what string) error {
	if err != nil {
		return err
	}
	if deleted {
		fmt.Fprintf(out, "deleted user by %s\n", what)
	} else {
		fmt.Fprintf(out, "no user matched %s\n", what)
	}
	return nil
}
