// Package nip44 implements version 2 of the NIP-44 payload encryption used
// between a client key and a remote signer.
//
// # Construction
//
//   - Conversation key: HKDF-extract(salt "nip44-v2") over the x coordinate of
//     the secp256k1 ECDH point.
//   - Per message: a random 32-byte nonce, HKDF-expand to a ChaCha20 key and
//     nonce plus an HMAC-SHA256 key.
//   - Plaintext is length-prefixed and padded to a power-of-two derived bucket
//     before encryption.
//   - Payload: base64(0x02 || nonce || ciphertext || mac).
//
// # Errors
//
// Every decryption failure is returned as an error value. Callers on shared
// channels are expected to drop such messages and keep going.
package nip44
