package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/internal/credential"
	"github.com/wrale/sitepub/internal/deviceauth"
	"github.com/wrale/sitepub/internal/publishapi"
)

// scope requested for the publishing credential
const publishScope = "publish"

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with a code entered in a browser on any device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			_, err = a.deviceLogin(cmd.Context(), store)
			return err
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential for the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("removing credential: %w", err)
			}
			fmt.Fprintf(a.out, "Logged out of %s\n", a.flags.server)
			return nil
		},
	}
}

// credential returns the stored credential, running the device flow once if there is none
func (a *app) credential(ctx context.Context, store credential.Store) (*credential.Credential, error) {
	cred, err := store.Load(ctx)
	if err == nil {
		a.logger.Debug("using stored credential", zap.Time("saved_at", cred.SavedAt))
		return cred, nil
	}
	if !errors.Is(err, credential.ErrNotFound) {
		return nil, fmt.Errorf("loading credential: %w", err)
	}
	return a.deviceLogin(ctx, store)
}

// deviceLogin runs one device authorization attempt and persists the credential on success.
// Nothing is stored when authorization fails or is cancelled.
func (a *app) deviceLogin(ctx context.Context, store credential.Store) (*credential.Credential, error) {
	opts := append([]deviceauth.Option{deviceauth.WithLogger(a.logger)}, a.deviceOpts...)
	client, err := deviceauth.NewClient(a.flags.authServer, opts...)
	if err != nil {
		return nil, err
	}

	session, err := client.RequestDeviceCode(ctx, a.flags.clientID, publishScope)
	if err != nil {
		return nil, fmt.Errorf("starting device authorization: %w", err)
	}

	fmt.Fprintf(a.errOut, "To sign in, open %s and enter the code:\n\n    %s\n\n",
		session.VerificationURI, session.UserCode)
	if session.VerificationURIComplete != "" {
		fmt.Fprintf(a.errOut, "Or open %s to skip typing the code.\n", session.VerificationURIComplete)
	}
	fmt.Fprintln(a.errOut, "Waiting for authorization...")

	token, err := client.PollForToken(ctx, session)
	if err != nil {
		return nil, err
	}

	cred := &credential.Credential{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Scope:       token.Scope,
	}
	if err := store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("saving credential: %w", err)
	}
	fmt.Fprintf(a.errOut, "Logged in to %s\n", a.flags.server)
	return cred, nil
}

// apiClient returns a publishing API client authenticated with the stored credential
func (a *app) apiClient(ctx context.Context) (*publishapi.Client, credential.Store, error) {
	store, err := a.store()
	if err != nil {
		return nil, nil, err
	}
	cred, err := a.credential(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	client, err := publishapi.NewClient(ctx, a.flags.server, cred.Token(), publishapi.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	return client, store, nil
}

// checkAuth clears a credential the server rejected so the next command signs in again
func (a *app) checkAuth(ctx context.Context, store credential.Store, err error) error {
	if !errors.Is(err, publishapi.ErrUnauthorized) {
		return err
	}
	if clearErr := store.Clear(ctx); clearErr != nil {
		a.logger.Warn("clearing rejected credential", zap.Error(clearErr))
	}
	return fmt.Errorf("%w; run 'sitepub login' to sign in again", err)
}
