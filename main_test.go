package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "test_jwt_secret")
	t.Setenv("UPLOAD_DIR", t.TempDir())
	t.Setenv("STORAGE_DRIVER", "local")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoutesCommand(t *testing.T) {
	testEnv(t)

	out, err := run(t, "routes")
	require.NoError(t, err)

	for _, want := range []string{
		"/health",
		"/auth/login",
		"/products/:id",
		"/payment/verify",
		"/returns/admin/action",
		"/admin/overview",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.Contains(out, "PATCH") && strings.Contains(out, "/admin/orders/:id/status"))
}

func TestRequiredFlags(t *testing.T) {
	testEnv(t)

	_, err := run(t, "seed-admin", "--email", "owner@example.com")
	assert.Error(t, err)

	_, err = run(t, "make-token")
	assert.Error(t, err)

	_, err = run(t, "send-test-email")
	assert.Error(t, err)
}

func TestInvalidConfiguration(t *testing.T) {
	testEnv(t)
	t.Setenv("JWT_ALGORITHM", "RS256")

	_, err := run(t, "routes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
