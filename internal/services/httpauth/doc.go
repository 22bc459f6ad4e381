// Package httpauth signs outbound HTTP requests with a NIP-98 authorization
// event obtained from the remote signer.
package httpauth
