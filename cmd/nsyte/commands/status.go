package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nsyte/internal/domain"
)

func statusCmd() *cobra.Command {
	var (
		ping   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current signer session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := appCtx.Signer.Status()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(cmd, st)
			if ping && st.Connected {
				start := time.Now()
				if err := appCtx.Signer.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("ping: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signer answered in %s\n", time.Since(start).Round(time.Millisecond))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ping, "ping", false, "round-trip a ping to the remote signer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, st domain.Status) {
	out := cmd.OutOrStdout()
	if !st.Connected {
		fmt.Fprintln(out, "Not connected.")
		return
	}
	if st.AlreadyConnected {
		fmt.Fprintln(out, "Already connected.")
	} else {
		fmt.Fprintln(out, "Connected.")
	}
	fmt.Fprintf(out, "  user:   %s\n", displayKey(st.UserPubKey))
	fmt.Fprintf(out, "  signer: %s\n", st.RemoteSignerPubKey)
	fmt.Fprintf(out, "  relays: %s\n", strings.Join(st.Relays, ", "))
	if !st.EstablishedAt.IsZero() {
		fmt.Fprintf(out, "  since:  %s\n", st.EstablishedAt.Format(time.RFC3339))
	}
}

// displayKey prefers the npub form and falls back to the key as stored.
func displayKey(pub domain.PublicKey) string {
	if npub := pub.Npub(); npub != "" {
		return npub
	}
	return pub.String()
}
