package nip46_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nsyte/internal/protocol/nip46"
)

func TestParseResponse(t *testing.T) {
	r, err := nip46.ParseResponse(`{"id":"a1","result":"pong"}`)
	require.NoError(t, err)
	require.Equal(t, nip46.Response{ID: "a1", Result: "pong"}, r)

	r, err = nip46.ParseResponse(`{"id":"a1","result":"auth_url","error":"https://signer/approve"}`)
	require.NoError(t, err)
	url, ok := r.AuthChallenge()
	require.True(t, ok)
	require.Equal(t, "https://signer/approve", url)

	for _, bad := range []string{
		``,
		`null`,
		`[]`,
		`{"id":"a1"}`,
		`{"result":"x"}`,
		`{"id":1,"result":"x"}`,
		`{"id":"a1","result":{"nested":true}}`,
		`{"id":"a1","result":"x"} trailing`,
	} {
		_, err := nip46.ParseResponse(bad)
		require.Error(t, err, bad)
	}
}

func TestParseRequest(t *testing.T) {
	r, err := nip46.ParseRequest(`{"id":"x","method":"ping"}`)
	require.NoError(t, err)
	require.Equal(t, "ping", r.Method)
	require.Equal(t, []string{}, r.Params)

	_, err = nip46.ParseRequest(`{"id":"x","params":[]}`)
	require.Error(t, err)
}
