package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/forgo/docrepo/internal/provision"
)

func newProvisionCmd(c *cli) *cobra.Command {
	var manifestPath string
	cmd := &cobra.Command{
		Use:   "provision -f manifest.yaml",
		Short: "Create the collections listed in a manifest",
		Long: `Create every collection of the manifest that does not exist yet.

Existing collections are left untouched, so provisioning can run on every
deploy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if manifestPath == "" {
				return errors.New("--file is required")
			}
			manifest, err := provision.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			return c.withStore(cmd, func(ctx context.Context, s *session) error {
				res, err := provision.NewProvisioner(s.store, s.logger).Ensure(ctx, manifest)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), c.output, res)
			})
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "file", "f", "", "manifest file")
	return cmd
}

func newDropCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <collection>...",
		Short: "Remove collections and their documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(ctx context.Context, s *session) error {
				res, err := provision.NewProvisioner(s.store, s.logger).Drop(ctx, args...)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), c.output, res)
			})
		},
	}
}

func newCollectionsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(ctx context.Context, s *session) error {
				names, err := s.store.ListCollections(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), c.output, names)
			})
		},
	}
}
