package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, OwnershipOwnerOrAdmin, cfg.Policy.Ownership)
	assert.Equal(t, CapacityUnbounded, cfg.Policy.Capacity)
	assert.Equal(t, ContactAllOrganizers, cfg.Policy.ContactVisibility)
	assert.Equal(t, 52, cfg.Recurrence.MaxCount)
	assert.Equal(t, 30*time.Second, cfg.Redis.CapacityCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.RecurrenceRunTTL)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.Server.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OWNERSHIP_POLICY", "ANY_ORGANIZER")
	t.Setenv("CAPACITY_POLICY", "enforced")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TASK_LOCK_TTL_SECONDS", "9")
	t.Setenv("PUBLIC_BASE_URL", "https://community.example.org/")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, OwnershipAnyOrganizer, cfg.Policy.Ownership)
	assert.Equal(t, CapacityEnforced, cfg.Policy.Capacity)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 9*time.Second, cfg.Redis.TaskLockTTL)
	assert.Equal(t, "https://community.example.org", cfg.Server.PublicBaseURL)
}

func TestValidateRejectsUnknownPolicies(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"ownership", "OWNERSHIP_POLICY", "anyone"},
		{"capacity", "CAPACITY_POLICY", "strict"},
		{"contact", "CONTACT_VISIBILITY", "nobody"},
		{"max count", "RECURRENCE_MAX_COUNT", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv(tt.key, tt.val)
			assert.Error(t, Load().Validate())
		})
	}
}

func TestValidateRequiresAuthSource(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OIDC_ISSUER", "")
	assert.Error(t, Load().Validate())
}
