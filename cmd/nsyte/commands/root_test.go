package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nsyte/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { home, relays, logLevel, noQR = "", nil, "", false })

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--home", t.TempDir()}, args...))
	err := run(context.Background(), root)
	return out.String(), err
}

func TestFailingCommandReleasesApp(t *testing.T) {
	_, err := execute(t, "sign", "--content", "hello")
	require.ErrorIs(t, err, domain.ErrNotConnected)
	require.Nil(t, appCtx)
	require.Nil(t, logCloser)
}

func TestSucceedingCommandReleasesApp(t *testing.T) {
	out, err := execute(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Not connected.")
	require.Nil(t, appCtx)
	require.Nil(t, logCloser)
}
