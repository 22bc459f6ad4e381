// Package nip46 implements the client side of the NIP-46 remote signing
// protocol.
//
// A Channel binds a disposable client key to a remote signer key and a relay
// set. Each Call allocates its own request id and subscription, so any number
// of calls may be in flight at once. Inbound traffic that cannot be decrypted,
// parsed, or matched to the outstanding id is dropped.
//
// Pairing starts with a nostrconnect:// invitation (BuildConnectURI). The
// remote signer answers with a response carrying the invitation secret, which
// Listener picks out of whatever else arrives on the client key.
package nip46
