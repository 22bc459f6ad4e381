// Package relay implements domain.Transport over NIP-01 websocket relays.
//
// A Pool caches one connection per normalised relay URL and dials lazily, so
// repeated calls with overlapping relay sets share connections and a relay
// that went away is simply redialled on next use. Per-relay failures are
// logged and skipped; an operation fails only when no relay at all could be
// reached.
//
// Subscriptions merge events from every relay they were opened on, verify
// ids and signatures, re-check the filter locally, and drop duplicates. The
// events channel is closed once every backing relay has disconnected.
package relay
