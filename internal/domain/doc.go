// Package domain defines the records, wire shapes and contracts shared by the
// signer client: sessions, pending handshakes, events, relay transport and
// stores. Concrete types live in domain/types and interfaces in
// domain/interfaces; this package re-exports both alongside sentinel errors.
package domain
