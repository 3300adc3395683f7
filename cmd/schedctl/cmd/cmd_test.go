package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/auth"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestProject_ClampsMonthEnd(t *testing.T) {
	out, err := run(t, "project", "--from", "2024-01-31", "--frequency", "monthly", "-n", "4")
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-29", "2024-04-29"},
		strings.Fields(out))
}

func TestProject_RejectsUnknownCadence(t *testing.T) {
	_, err := run(t, "project", "--from", "2024-01-31", "--frequency", "hourly")
	require.Error(t, err)
}

func TestToken_VerifiesWithSameSecret(t *testing.T) {
	secret := "cli-test-secret-0123456789abcdef"
	t.Setenv("JWT_SECRET", secret)
	out, err := run(t, "token", "--sub", "user-7", "--ttl", "5m")
	require.NoError(t, err)

	tok, err := auth.NewHMACVerifier(secret).Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "user-7", claims["sub"])
}

func TestToken_RequiresSub(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	_, err := run(t, "token")
	require.Error(t, err)
}
