package types

import (
	"encoding/json"
	"slices"
	"strings"
)

// Kind identifies the type of an Event.
type Kind int

const (
	// KindNostrConnect carries encrypted remote signing traffic.
	KindNostrConnect Kind = 24133
	// KindHTTPAuth is the HTTP authorization event kind.
	KindHTTPAuth Kind = 27235
)

// Ephemeral reports whether relays are expected not to store events of k.
func (k Kind) Ephemeral() bool { return k >= 20000 && k < 30000 }

// Tag is one event tag, e.g. ["p", "<pubkey>"].
type Tag []string

// Key returns the tag name or "".
func (t Tag) Key() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the first tag value or "".
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Tags is the ordered tag list of an event.
type Tags []Tag

// Values returns every first value of tags named key.
func (ts Tags) Values(key string) []string {
	var out []string
	for _, t := range ts {
		if t.Key() == key && len(t) > 1 {
			out = append(out, t[1])
		}
	}
	return out
}

// Event is a signed, timestamped message addressed via tags.
type Event struct {
	ID        string    `json:"id"`
	PubKey    PublicKey `json:"pubkey"`
	CreatedAt int64     `json:"created_at"`
	Kind      Kind      `json:"kind"`
	Tags      Tags      `json:"tags"`
	Content   string    `json:"content"`
	Sig       string    `json:"sig"`
}

// EventTemplate is an unsigned event handed to a signer.
type EventTemplate struct {
	Kind      Kind   `json:"kind"`
	CreatedAt int64  `json:"created_at"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
}

// Filter selects events on a relay subscription.
type Filter struct {
	IDs     []string
	Kinds   []Kind
	Authors []PublicKey
	Tags    map[string][]string
	Since   int64
	Until   int64
	Limit   int
}

// MarshalJSON renders the relay wire form with "#<tag>" keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 6+len(f.Tags))
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	for k, v := range f.Tags {
		m["#"+k] = v
	}
	if f.Since > 0 {
		m["since"] = f.Since
	}
	if f.Until > 0 {
		m["until"] = f.Until
	}
	if f.Limit > 0 {
		m["limit"] = f.Limit
	}
	return json.Marshal(m)
}

// UnmarshalJSON mirrors MarshalJSON.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Filter{}
	for k, v := range raw {
		var err error
		switch {
		case k == "ids":
			err = json.Unmarshal(v, &f.IDs)
		case k == "kinds":
			err = json.Unmarshal(v, &f.Kinds)
		case k == "authors":
			err = json.Unmarshal(v, &f.Authors)
		case k == "since":
			err = json.Unmarshal(v, &f.Since)
		case k == "until":
			err = json.Unmarshal(v, &f.Until)
		case k == "limit":
			err = json.Unmarshal(v, &f.Limit)
		case strings.HasPrefix(k, "#") && len(k) == 2:
			var vals []string
			err = json.Unmarshal(v, &vals)
			if f.Tags == nil {
				f.Tags = make(map[string][]string)
			}
			f.Tags[k[1:]] = vals
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether ev satisfies every condition of f.
func (f Filter) Matches(ev Event) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, ev.ID) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, ev.PubKey) {
		return false
	}
	if f.Since > 0 && ev.CreatedAt < f.Since {
		return false
	}
	if f.Until > 0 && ev.CreatedAt > f.Until {
		return false
	}
	for k, want := range f.Tags {
		if len(want) == 0 {
			continue
		}
		found := false
		for _, v := range ev.Tags.Values(k) {
			if slices.Contains(want, v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// PublishResult counts relay acceptance for one or more events.
type PublishResult struct {
	Accepted  int               `json:"accepted"`
	Attempted int               `json:"attempted"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// Add folds o into r.
func (r *PublishResult) Add(o PublishResult) {
	r.Accepted += o.Accepted
	r.Attempted += o.Attempted
	for k, v := range o.Failures {
		if r.Failures == nil {
			r.Failures = make(map[string]string)
		}
		r.Failures[k] = v
	}
}
