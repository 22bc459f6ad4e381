// Package crypto exposes the minimal primitives used by nsyte.
//
// Contents
//
//   - secp256k1 key generation and x-only public key derivation
//     (GenerateSecretKey, PublicKeyOf)
//   - Event id computation, BIP-340 signing and verification (EventID,
//     SignEvent, VerifyEvent)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//   - Base64 helpers for header encoding (B64)
//
// # Notes
//
// Only short-lived client keys pass through here. The user's identity key
// never does: signatures for it come from the remote signer.
package crypto
