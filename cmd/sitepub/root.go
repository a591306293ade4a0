package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/internal/credential"
	"github.com/wrale/sitepub/internal/deviceauth"
	"github.com/wrale/sitepub/internal/logging"
)

// cliEnv holds the SITEPUB_* variables used as flag defaults
type cliEnv struct {
	Server     string `envconfig:"SERVER"`
	AuthServer string `envconfig:"AUTH_SERVER"`
	ClientID   string `envconfig:"CLIENT_ID" default:"sitepub-cli"`
	ConfigDir  string `envconfig:"CONFIG_DIR"`
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	server     string
	authServer string
	clientID   string
	configDir  string
	keyring    bool
	verbose    bool
}

// app carries the command dependencies
type app struct {
	out    io.Writer
	errOut io.Writer
	env    cliEnv
	flags  globalFlags
	logger *zap.Logger

	// deviceOpts are appended when building the device authorization client
	deviceOpts []deviceauth.Option
}

func newApp(out, errOut io.Writer) (*app, error) {
	a := &app{out: out, errOut: errOut}
	if err := envconfig.Process("sitepub", &a.env); err != nil {
		return nil, err
	}
	return a, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sitepub",
		Short:         "Publish sites and share private previews",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger == nil {
				a.logger = logging.NewConsole(a.flags.verbose)
			}
			if a.flags.server == "" {
				return errors.New("no server configured: pass --server or set SITEPUB_SERVER")
			}
			if a.flags.authServer == "" {
				a.flags.authServer = a.flags.server
			}
			return nil
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.server, "server", a.env.Server, "publishing service base URL")
	pf.StringVar(&a.flags.authServer, "auth-server", a.env.AuthServer, "authorization server base URL (defaults to --server)")
	pf.StringVar(&a.flags.clientID, "client-id", a.env.ClientID, "OAuth client ID used for device authorization")
	pf.StringVar(&a.flags.configDir, "config-dir", a.env.ConfigDir, "directory holding the credential file")
	pf.BoolVar(&a.flags.keyring, "keyring", false, "store the credential in the OS keyring instead of a file")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newPublishCmd(a),
		newShareCmd(a),
	)
	return root
}

// store opens the credential store for the selected server
func (a *app) store() (credential.Store, error) {
	if a.flags.keyring {
		return credential.NewKeyringStore(a.flags.server)
	}

	dir := a.flags.configDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locating config directory: %w", err)
		}
		dir = filepath.Join(base, "sitepub")
	}
	return credential.NewFileStore(dir, a.flags.server)
}
