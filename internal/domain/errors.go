package domain

import "errors"

var (
	ErrNotConnected       = errors.New("not connected to a remote signer; run connect first")
	ErrNoPendingHandshake = errors.New("no pending connection; run connect --two-step first")
	ErrTimeout            = errors.New("timed out waiting for remote signer")
	ErrNoRelays           = errors.New("no relays reachable")
	ErrRelaysLost         = errors.New("all relays disconnected")
	ErrIncompleteSession  = errors.New("refusing to persist incomplete session")
	ErrNothingAccepted    = errors.New("no relay accepted the event")
	ErrInvalidInvitation  = errors.New("invalid connection uri")
	ErrAlreadyConnected   = errors.New("already connected; run disconnect before pairing again")
)
