// Command sitepub publishes sites and manages their preview share tokens.
// It signs in with the OAuth 2.0 device authorization grant and keeps the
// resulting credential per server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/wrale/sitepub/internal/deviceauth"
)

// Version is set by the build process
var Version = "dev"

// exitCancelled follows the shell convention for termination by SIGINT
const exitCancelled = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if code := exitCode(newRootCmd(a).ExecuteContext(ctx), os.Stderr); code != 0 {
		stop()
		os.Exit(code)
	}
}

// exitCode reports err on w and returns the process exit status for it
func exitCode(err error, w io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, deviceauth.ErrCancelled):
		fmt.Fprintln(w, "Login cancelled, nothing was saved")
		return exitCancelled
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
}
