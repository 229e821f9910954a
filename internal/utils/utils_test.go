package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/investours/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReference(t *testing.T) {
	ref := GenerateReference("WDL")
	assert.True(t, strings.HasPrefix(ref, "WDL-"))
	assert.Len(t, strings.Split(ref, "-"), 3)

	assert.NotEqual(t, ref, GenerateReference("WDL"))
}

func TestJWTRoundTrip(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: 1}
	principalID := uuid.New()

	token, err := GenerateToken(cfg, principalID, true)
	require.NoError(t, err)

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, principalID, claims.PrincipalID)
	assert.True(t, claims.IsAdmin)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(config.JWTConfig{Secret: "right", Expiration: 1}, uuid.New(), false)
	require.NoError(t, err)

	_, err = ValidateToken(config.JWTConfig{Secret: "wrong", Expiration: 1}, token)
	assert.Error(t, err)
}
