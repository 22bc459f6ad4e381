package commands

import (
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"

	"nsyte/internal/domain"
)

type invitationRenderer = domain.InvitationRenderer

// qrRenderer draws the invitation as a terminal QR code followed by the URI.
type qrRenderer struct{ out io.Writer }

func (r qrRenderer) RenderInvitation(uri string) error {
	fmt.Fprintln(r.out, "Scan with your signer app:")
	qrterminal.GenerateHalfBlock(uri, qrterminal.L, r.out)
	fmt.Fprintf(r.out, "\n%s\n\n", uri)
	return nil
}

type uriRenderer struct{ out io.Writer }

func (r uriRenderer) RenderInvitation(uri string) error {
	_, err := fmt.Fprintf(r.out, "Paste this into your signer app:\n%s\n", uri)
	return err
}
