package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"nsyte/internal/domain"
)

func TestPrintStatusShowsUserKey(t *testing.T) {
	cases := []struct {
		name string
		user domain.PublicKey
		want string
	}{
		{
			name: "hex key as npub",
			user: "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d",
			want: "user:   npub1",
		},
		{
			name: "non-key falls back to raw value",
			user: "abc123",
			want: "user:   abc123\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)
			printStatus(cmd, domain.Status{
				Connected:          true,
				UserPubKey:         tc.user,
				RemoteSignerPubKey: "ff",
				Relays:             []string{"wss://relay.example.com"},
				EstablishedAt:      time.Unix(1700000000, 0).UTC(),
			})
			require.Contains(t, out.String(), tc.want)
		})
	}
}
