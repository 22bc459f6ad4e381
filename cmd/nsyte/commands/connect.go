package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func connectCmd() *cobra.Command {
	var (
		twoStep bool
		bunker  string
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Pair with a remote signer",
		Long: "Shows a nostrconnect:// invitation and waits for the remote signer to accept it.\n" +
			"With --two-step the invitation is stored and `nsyte complete` finishes pairing later.\n" +
			"With --bunker the client dials a signer-issued bunker:// URI instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case bunker != "":
				st, err := appCtx.Signer.ConnectBunker(ctx, bunker)
				if err != nil {
					return err
				}
				printStatus(cmd, st)
				return nil
			case twoStep:
				inv, err := appCtx.Signer.InitiateConnection(ctx, appCtx.Config.Relays)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Invitation stored (%s). Run `nsyte complete` after approving it.\n",
					inv.CreatedAt.Format(time.RFC3339))
				return nil
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Waiting up to %s for the signer...\n", appCtx.Config.HandshakeTimeout)
				st, err := appCtx.Signer.Connect(ctx, appCtx.Config.Relays)
				if err != nil {
					return err
				}
				printStatus(cmd, st)
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&twoStep, "two-step", false, "store the invitation and exit without waiting")
	cmd.Flags().StringVar(&bunker, "bunker", "", "bunker:// URI issued by the signer")
	cmd.MarkFlagsMutuallyExclusive("two-step", "bunker")
	return cmd
}

func completeCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Finish a pairing started with connect --two-step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if timeout <= 0 {
				timeout = appCtx.Config.HandshakeTimeout
			}
			st, err := appCtx.Signer.CompleteConnection(cmd.Context(), timeout)
			if err != nil {
				return err
			}
			printStatus(cmd, st)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for the signer (default: handshake timeout)")
	return cmd
}

func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the session and any pending invitation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Signer.Disconnect(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Disconnected.")
			return nil
		},
	}
}
