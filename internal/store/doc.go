// Package store persists the remote signing session and the pending pairing
// invitation.
//
// Both records are flat JSON documents. The client secret is written as a
// bech32 nsec string so it is recognisable as key material at rest.
//
// Loads fail soft: a missing, unparsable, or incomplete record is reported
// as absent and logged, and the next successful save replaces it. Only
// backend I/O failures surface as errors.
//
// Two backends are provided:
//   - FileStore keeps bunker_session.json and bunker_pending.json in the
//     configured home directory (0600, atomic replace).
//   - RedisStore keeps the same documents under <prefix>session and
//     <prefix>pending.
package store
