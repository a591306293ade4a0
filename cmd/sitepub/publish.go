package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/validation"
)

type publishFlags struct {
	name       string
	visibility string
	www        bool
	dryRun     bool
}

func newPublishCmd(a *app) *cobra.Command {
	var f publishFlags

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Register a project or update its publish settings",
		Long: `Register a project under your account or update its settings.
Signs in with the device authorization flow first if no credential is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := validation.NormalizeProjectName(f.name)
			if err := validation.ValidateProjectName(name); err != nil {
				return err
			}

			// Only flags given on the command line are sent so a republish keeps
			// the stored settings.
			var settings project.Settings
			if cmd.Flags().Changed("visibility") {
				if err := validation.ValidateVisibility(f.visibility); err != nil {
					return err
				}
				settings.Visibility = &f.visibility
			}
			if cmd.Flags().Changed("www") {
				settings.WWW = &f.www
			}

			if f.dryRun {
				fmt.Fprintf(a.out, "Dry run: would publish %s (%s)%s\n", name, dryRunVisibility(settings), wwwSuffix(settings.WWW != nil && *settings.WWW))
				return nil
			}

			ctx := cmd.Context()
			client, store, err := a.apiClient(ctx)
			if err != nil {
				return err
			}
			p, err := client.PublishProject(ctx, name, settings)
			if err != nil {
				return a.checkAuth(ctx, store, err)
			}
			fmt.Fprintf(a.out, "Published %s (%s)%s\n", p.Name, p.Visibility, wwwSuffix(p.WWW))
			return nil
		},
	}

	cmd.Flags().StringVar(&f.name, "name", "", "project name")
	cmd.Flags().StringVar(&f.visibility, "visibility", "", "public or private (public on first publish, unchanged otherwise)")
	cmd.Flags().BoolVar(&f.www, "www", false, "serve at the root of the preview domain (unchanged unless given)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate only, without contacting the server")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func dryRunVisibility(s project.Settings) string {
	if s.Visibility == nil {
		return "visibility unchanged"
	}
	return *s.Visibility
}

func wwwSuffix(www bool) string {
	if www {
		return " at the domain root"
	}
	return ""
}
