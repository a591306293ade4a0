package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrale/sitepub/internal/expiry"
	"github.com/wrale/sitepub/internal/sharetoken"
	"github.com/wrale/sitepub/internal/validation"
)

func newShareCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Manage preview share tokens of a project",
	}

	var projectName string
	cmd.PersistentFlags().StringVar(&projectName, "project", "", "project the tokens belong to")
	_ = cmd.MarkPersistentFlagRequired("project")

	cmd.AddCommand(
		newShareCreateCmd(a, &projectName),
		newShareListCmd(a, &projectName),
		newShareRevokeCmd(a, &projectName),
	)
	return cmd
}

func newShareCreateCmd(a *app, projectName *string) *cobra.Command {
	var (
		name     string
		duration string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a share token granting preview access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateName(name); err != nil {
				return err
			}
			if err := validation.ValidateDuration(duration); err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(a.out, "Dry run: would create share token %q for %s valid for %s\n", name, *projectName, duration)
				return nil
			}

			ctx := cmd.Context()
			client, store, err := a.apiClient(ctx)
			if err != nil {
				return err
			}
			result, err := client.CreateShareToken(ctx, *projectName, name, expiry.Duration(duration))
			if err != nil {
				return a.checkAuth(ctx, store, err)
			}

			tok := result.ShareToken
			fmt.Fprintf(a.out, "Created share token %q (%s)\n", tok.Name, tok.ID)
			fmt.Fprintf(a.out, "Expires: %s\n", tok.ExpiresAt.Local().Format(time.RFC1123))
			fmt.Fprintf(a.out, "URL:     %s\n", result.ShareURL)
			fmt.Fprintf(a.out, "Token:   %s\n", result.Token)
			fmt.Fprintln(a.out, "The token is shown only once.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "token name")
	cmd.Flags().StringVar(&duration, "duration", string(expiry.OneDay), "lifetime: 1d, 1w or 1m")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only, without contacting the server")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newShareListCmd(a *app, projectName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the share tokens of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, store, err := a.apiClient(ctx)
			if err != nil {
				return err
			}
			result, err := client.ListShareTokens(ctx, *projectName)
			if err != nil {
				return a.checkAuth(ctx, store, err)
			}

			if len(result.ShareTokens) == 0 {
				fmt.Fprintf(a.out, "No share tokens for %s\n", *projectName)
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDURATION\tEXPIRES\tSTATUS")
			for _, t := range result.ShareTokens {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Name, t.Duration, t.ExpiresAt.Local().Format(time.DateTime), status(t))
			}
			return tw.Flush()
		},
	}
}

func newShareRevokeCmd(a *app, projectName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a share token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, store, err := a.apiClient(ctx)
			if err != nil {
				return err
			}
			result, err := client.RevokeShareToken(ctx, *projectName, args[0])
			if err != nil {
				return a.checkAuth(ctx, store, err)
			}
			tok := result.ShareToken
			if tok.RevokedAt == nil {
				return fmt.Errorf("server did not confirm revocation of %s", tok.ID)
			}
			fmt.Fprintf(a.out, "Revoked share token %q (%s) at %s\n",
				tok.Name, tok.ID, tok.RevokedAt.Local().Format(time.DateTime))
			return nil
		},
	}
}

// status summarizes the derived token state
func status(v sharetoken.View) string {
	switch {
	case v.IsRevoked:
		return "revoked"
	case v.IsExpired:
		return "expired"
	default:
		return "active"
	}
}
