package commands

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCreateToken(t *testing.T) {
	t.Setenv("SIGNING_SECRET", "create-token-test-secret-0123456789ab")

	t.Run("JSONFormat", func(t *testing.T) {
		io, buffer := testIO()

		err := RunCreateToken(context.Background(), "ops@example.com", "manager", time.Hour, "json", io)
		require.NoError(t, err)

		var result map[string]string
		require.NoError(t, json.Unmarshal(buffer.Bytes(), &result))
		assert.NotEmpty(t, result["token"])
		assert.Equal(t, "ops@example.com", result["subject"])
		assert.Equal(t, "manager", result["role"])
	})

	t.Run("TextFormat", func(t *testing.T) {
		io, buffer := testIO()

		err := RunCreateToken(context.Background(), "ops@example.com", "viewer", time.Hour, "text", io)
		require.NoError(t, err)

		output := buffer.String()
		assert.Contains(t, output, "Token issued successfully")
		assert.Contains(t, output, "Role: viewer")
	})

	t.Run("UnknownRole", func(t *testing.T) {
		io, _ := testIO()

		err := RunCreateToken(context.Background(), "ops@example.com", "superuser", time.Hour, "text", io)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown role")
	})

	t.Run("InvalidSubject", func(t *testing.T) {
		io, _ := testIO()

		err := RunCreateToken(context.Background(), "ops with spaces", "viewer", time.Hour, "text", io)
		assert.Error(t, err)
	})
}

func TestRunCreateToken_MissingSecret(t *testing.T) {
	t.Setenv("SIGNING_SECRET", "")

	io, _ := testIO()

	err := RunCreateToken(context.Background(), "ops@example.com", "viewer", time.Hour, "text", io)
	assert.Error(t, err)
}
