package relay

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize lowercases scheme and host and strips a trailing slash so the
// same relay written two ways maps to one connection.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("relay url %q: %w", raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("relay url %q: scheme must be ws or wss", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("relay url %q: missing host", raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""
	return u.String(), nil
}

// dedupe normalises relays, keeps first-seen order and reports the ones
// that could not be parsed.
func dedupe(relays []string) ([]string, map[string]string) {
	seen := make(map[string]struct{}, len(relays))
	out := make([]string, 0, len(relays))
	var bad map[string]string
	for _, r := range relays {
		n, err := Normalize(r)
		if err != nil {
			if bad == nil {
				bad = make(map[string]string)
			}
			bad[r] = err.Error()
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, bad
}
