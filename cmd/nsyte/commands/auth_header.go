package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func authHeaderCmd() *cobra.Command {
	var (
		url      string
		method   string
		bodyFile string
	)
	cmd := &cobra.Command{
		Use:   "auth-header",
		Short: "Print a signed Authorization header for an HTTP request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			if bodyFile != "" {
				b, err := os.ReadFile(bodyFile)
				if err != nil {
					return err
				}
				body = b
			}
			header, err := appCtx.Auth.Header(cmd.Context(), method, url, body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), header)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "absolute request URL")
	cmd.Flags().StringVar(&method, "method", "GET", "HTTP method")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "request body to hash into the payload tag")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
