package commands

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nsyte/internal/app"
)

var (
	home     string
	relays   []string
	logLevel string
	noQR     bool

	appCtx    *app.App
	logCloser io.Closer
)

func Execute(ctx context.Context) error {
	return run(ctx, newRootCmd())
}

// run executes root and releases the App and log sink whatever the outcome;
// cobra skips post-run hooks when a command fails.
func run(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	return errors.Join(err, release())
}

func release() error {
	var errs []error
	if appCtx != nil {
		errs = append(errs, appCtx.Close())
		appCtx = nil
	}
	if logCloser != nil {
		errs = append(errs, logCloser.Close())
		logCloser = nil
	}
	return errors.Join(errs...)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nsyte",
		Short:         "Sign and publish events through a remote signer",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Load(home)
			if err != nil {
				return err
			}
			if len(relays) > 0 {
				cfg.Relays = relays
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}

			log, closer, err := app.NewLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logCloser = closer

			var renderer invitationRenderer = qrRenderer{out: cmd.OutOrStdout()}
			if noQR {
				renderer = uriRenderer{out: cmd.OutOrStdout()}
			}
			appCtx, err = app.New(cmd.Context(), cfg, log, renderer)
			if err != nil {
				return err
			}
			appCtx.Signer.OnAuthURL = func(url string) {
				cmd.PrintErrf("The remote signer asks you to approve this request at:\n  %s\n", url)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.nsyte, or NSYTE_HOME)")
	root.PersistentFlags().StringSliceVar(&relays, "relay", nil, "signer relay URL (repeatable; overrides config)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&noQR, "no-qr", false, "print invitations as plain URIs")

	root.AddCommand(
		connectCmd(),
		completeCmd(),
		statusCmd(),
		signCmd(),
		publishCmd(),
		authHeaderCmd(),
		disconnectCmd(),
	)
	return root
}
