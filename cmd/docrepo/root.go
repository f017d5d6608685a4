package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgo/docrepo/internal/app"
	"github.com/forgo/docrepo/internal/config"
	"github.com/forgo/docrepo/internal/docstore"
	"github.com/forgo/docrepo/internal/logging"
)

// session is an opened store for the lifetime of one command.
type session struct {
	store  docstore.Store
	logger *slog.Logger
	close  func() error
}

// opener opens the store named by the config file at path.
type opener func(ctx context.Context, path string) (*session, error)

func openSession(ctx context.Context, path string) (*session, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New(cfg.Log, os.Stderr)
	backend, err := app.OpenStore(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	return &session{store: backend.Store, logger: logger, close: backend.Close}, nil
}

// cli carries the global flags into subcommands.
type cli struct {
	open       opener
	configPath string
	output     string
}

// withStore opens a session, runs fn and closes the session.
func (c *cli) withStore(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.open(ctx, c.configPath)
	if err != nil {
		return err
	}
	defer func() {
		if s.close != nil {
			_ = s.close()
		}
	}()
	return fn(ctx, s)
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "docrepo",
		Short: "Document store provisioning and access",
		Long: `Provision collections and read or write documents in the configured store.

The store backend (memory, surrealdb, postgres, sqlite) and its connection
settings come from the same configuration as the server: environment
variables such as STORE_BACKEND and DB_HOST, or a file given with --config
or $` + config.ConfigFileEnv + `.

Filters use the JSON filter syntax, for example
  --filter '{"op":"eq","field":"state.name","value":"Ann"}'`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch c.output {
			case outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want json or yaml)", c.output)
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $"+config.ConfigFileEnv+")")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", outputJSON, "output format: json or yaml")

	root.AddCommand(
		newProvisionCmd(c),
		newDropCmd(c),
		newCollectionsCmd(c),
		newGetCmd(c),
		newFindCmd(c),
		newCountCmd(c),
		newPutCmd(c),
		newDeleteCmd(c),
	)
	return root
}
