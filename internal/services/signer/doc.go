// Package signer is the signing facade: it pairs with a remote signer,
// keeps the resulting session, and turns event templates into signed events
// without ever holding the user's secret key.
//
// Pairing comes in two shapes. Connect shows the invitation and blocks until
// the signer acknowledges it. InitiateConnection and CompleteConnection split
// that into a non-blocking half and a blocking half so the invitation
// survives a process restart in between.
//
// The persisted Session is the source of truth. In-memory copies are a cache
// that is re-validated against the store on every call, so another process
// disconnecting is noticed without a network round trip.
package signer
