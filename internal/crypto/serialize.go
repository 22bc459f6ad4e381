package crypto

import (
	"strconv"

	"nsyte/internal/domain"
)

// serializeEvent renders the canonical array
// [0,<pubkey>,<created_at>,<kind>,<tags>,<content>] with the minimal escaping
// relays and other clients hash.
func serializeEvent(pub domain.PublicKey, createdAt int64, kind domain.Kind, tags domain.Tags, content string) []byte {
	b := make([]byte, 0, 128+len(content))
	b = append(b, `[0,`...)
	b = appendString(b, string(pub))
	b = append(b, ',')
	b = strconv.AppendInt(b, createdAt, 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(kind), 10)
	b = append(b, ',', '[')
	for i, tag := range tags {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '[')
		for j, v := range tag {
			if j > 0 {
				b = append(b, ',')
			}
			b = appendString(b, v)
		}
		b = append(b, ']')
	}
	b = append(b, ']', ',')
	b = appendString(b, content)
	b = append(b, ']')
	return b
}

func appendString(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b = append(b, '\\', '"')
		case '\\':
			b = append(b, '\\', '\\')
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		case '\b':
			b = append(b, '\\', 'b')
		case '\f':
			b = append(b, '\\', 'f')
		default:
			b = append(b, c)
		}
	}
	return append(b, '"')
}
