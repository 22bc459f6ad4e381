package types

import "fmt"

// RemoteError is a failure the remote signer reported for a request.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote signer rejected %s: %s", e.Method, e.Message)
}
