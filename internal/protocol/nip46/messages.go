package nip46

import (
	"bytes"
	"encoding/json"
	"errors"
)

const (
	MethodConnect      = "connect"
	MethodGetPublicKey = "get_public_key"
	MethodSignEvent    = "sign_event"
	MethodPing         = "ping"

	// resultAuthURL marks a response whose error field holds a URL the user
	// has to visit before the real response arrives.
	resultAuthURL = "auth_url"
)

var errMalformed = errors.New("nip46: malformed message")

// Request is the JSON-RPC style message sent to a remote signer.
type Request struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// Response is the remote signer's reply to a Request.
type Response struct {
	ID     string `json:"id"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// AuthChallenge reports whether r asks the user to open a URL.
func (r Response) AuthChallenge() (string, bool) {
	if r.Result == resultAuthURL && r.Error != "" {
		return r.Error, true
	}
	return "", false
}

// ParseResponse decodes plaintext strictly: wrong field types, trailing data,
// a missing id and a reply with neither result nor error are rejected.
func ParseResponse(plaintext string) (Response, error) {
	var r Response
	if err := strictDecode(plaintext, &r); err != nil {
		return Response{}, err
	}
	if r.ID == "" || (r.Result == "" && r.Error == "") {
		return Response{}, errMalformed
	}
	return r, nil
}

// ParseRequest decodes plaintext strictly.
func ParseRequest(plaintext string) (Request, error) {
	var r Request
	if err := strictDecode(plaintext, &r); err != nil {
		return Request{}, err
	}
	if r.ID == "" || r.Method == "" {
		return Request{}, errMalformed
	}
	if r.Params == nil {
		r.Params = []string{}
	}
	return r, nil
}

func strictDecode(plaintext string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(plaintext)))
	if err := dec.Decode(v); err != nil {
		return errMalformed
	}
	if dec.More() {
		return errMalformed
	}
	return nil
}

func encodeRequest(r Request) (string, error) {
	if r.Params == nil {
		r.Params = []string{}
	}
	b, err := json.Marshal(r)
	return string(b), err
}

// EncodeResponse renders r for the wire.
func EncodeResponse(r Response) (string, error) {
	b, err := json.Marshal(r)
	return string(b), err
}
