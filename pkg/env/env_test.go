package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvDefaults(t *testing.T) {
	t.Setenv("ERP_TEST_STRING", "  relatorios  ")
	t.Setenv("ERP_TEST_BLANK", "   ")
	t.Setenv("ERP_TEST_INT", "0x10")
	t.Setenv("ERP_TEST_BOOL", "true")
	t.Setenv("ERP_TEST_BAD_BOOL", "talvez")
	t.Setenv("ERP_TEST_FLOAT", "2.5")

	assert.Equal(t, "relatorios", GetEnvStringOrDefault("ERP_TEST_STRING", "x"))
	assert.Equal(t, "x", GetEnvStringOrDefault("ERP_TEST_BLANK", "x"))
	assert.Equal(t, 16, GetEnvIntOrDefault("ERP_TEST_INT", 1))
	assert.Equal(t, 7, GetEnvIntOrDefault("ERP_TEST_MISSING", 7))
	assert.True(t, GetEnvBoolOrDefault("ERP_TEST_BOOL", false))
	assert.True(t, GetEnvBoolOrDefault("ERP_TEST_BAD_BOOL", true))
	assert.Equal(t, 2.5, GetEnvFloat64OrDefault("ERP_TEST_FLOAT", 1))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("ERP_TEST_DURATION", "1500ms")
	t.Setenv("ERP_TEST_SECONDS", "3")
	t.Setenv("ERP_TEST_BAD_DURATION", "soon")

	assert.Equal(t, 1500*time.Millisecond, GetEnvDurationOrDefault("ERP_TEST_DURATION", 0))
	assert.Equal(t, 3*time.Second, GetEnvDurationOrDefault("ERP_TEST_SECONDS", 0))
	assert.Equal(t, time.Minute, GetEnvDurationOrDefault("ERP_TEST_BAD_DURATION", time.Minute))
}

func TestSanitizeEnv(t *testing.T) {
	_, err := SanitizeEnv("ERP_TEST_UNSET_VARIABLE")
	require.ErrorIs(t, err, ErrEmpty)
	assert.Contains(t, err.Error(), "ERP_TEST_UNSET_VARIABLE")

	assert.Panics(t, func() { MustGetEnvString("ERP_TEST_UNSET_VARIABLE") })
}
