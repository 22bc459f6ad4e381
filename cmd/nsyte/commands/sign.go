package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nsyte/internal/domain"
)

func signCmd() *cobra.Command {
	var (
		kind    int
		content string
		tags    []string
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Have the remote signer sign an event",
		Example: "  nsyte sign --kind 1 --content 'hello' --tag t=nostr\n" +
			"  nsyte sign --kind 1 --content 'hello' --publish",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl := domain.EventTemplate{Kind: domain.Kind(kind), Content: content}
			for _, raw := range tags {
				t, err := parseTag(raw)
				if err != nil {
					return err
				}
				tmpl.Tags = append(tmpl.Tags, t)
			}

			ev, err := appCtx.Signer.SignEvent(cmd.Context(), tmpl)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(ev); err != nil {
				return err
			}

			if !publish {
				return nil
			}
			res, err := appCtx.Signer.Publish(cmd.Context(), ev)
			printResult(cmd, res)
			return err
		},
	}
	cmd.Flags().IntVar(&kind, "kind", 1, "event kind")
	cmd.Flags().StringVar(&content, "content", "", "event content")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag as name=value[,value...] (repeatable)")
	cmd.Flags().BoolVar(&publish, "publish", false, "broadcast the signed event")
	return cmd
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <events.json>",
		Short: "Broadcast signed events (a JSON object or array) to the configured relays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			events, err := parseEvents(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			res, err := appCtx.Signer.PublishMany(cmd.Context(), events)
			printResult(cmd, res)
			return err
		},
	}
}

func printResult(cmd *cobra.Command, res domain.PublishResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Published: %d of %d accepted\n", res.Accepted, res.Attempted)
	for relay, reason := range res.Failures {
		fmt.Fprintf(out, "  %s: %s\n", relay, reason)
	}
}

// parseTag reads "name=v1,v2" into ["name","v1","v2"].
func parseTag(raw string) (domain.Tag, error) {
	name, values, ok := strings.Cut(raw, "=")
	if !ok || name == "" {
		return nil, fmt.Errorf("tag %q: want name=value", raw)
	}
	return append(domain.Tag{name}, strings.Split(values, ",")...), nil
}

func parseEvents(data []byte) ([]domain.Event, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var events []domain.Event
		if err := json.Unmarshal([]byte(trimmed), &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var ev domain.Event
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return nil, err
	}
	return []domain.Event{ev}, nil
}
