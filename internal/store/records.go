package store

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"nsyte/internal/domain"
)

// decodeSession treats anything but a complete Session as absent.
func decodeSession(log zerolog.Logger, where string, b []byte) (domain.Session, bool) {
	if len(b) == 0 {
		return domain.Session{}, false
	}
	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		log.Warn().Err(err).Str("record", where).Msg("ignoring unreadable session record")
		return domain.Session{}, false
	}
	if !s.Complete() {
		log.Warn().Str("record", where).Msg("ignoring incomplete session record")
		return domain.Session{}, false
	}
	return s, true
}

func decodeHandshake(log zerolog.Logger, where string, b []byte) (domain.PendingHandshake, bool) {
	if len(b) == 0 {
		return domain.PendingHandshake{}, false
	}
	var p domain.PendingHandshake
	if err := json.Unmarshal(b, &p); err != nil {
		log.Warn().Err(err).Str("record", where).Msg("ignoring unreadable pending handshake")
		return domain.PendingHandshake{}, false
	}
	if !p.Complete() {
		log.Warn().Str("record", where).Msg("ignoring incomplete pending handshake")
		return domain.PendingHandshake{}, false
	}
	return p, true
}
