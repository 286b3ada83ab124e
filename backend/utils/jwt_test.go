package utils

import (
	"net/http/httptest"
	"testing"

	"learnhub/backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extractVia runs ExtractPrincipal inside a real request context.
func extractVia(t *testing.T, cfg *config.Config, authHeader string) (Principal, error) {
	t.Helper()

	var principal Principal
	var extractErr error

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		principal, extractErr = ExtractPrincipal(c, cfg)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if _, err := app.Test(req); err != nil {
		t.Fatalf("test request: %v", err)
	}

	return principal, extractErr
}

func TestJWTRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret"}

	token, err := GenerateJWTToken(7, "peggy", "admin", cfg)
	require.NoError(t, err)

	principal, err := extractVia(t, cfg, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), principal.UserID)
	assert.Equal(t, "peggy", principal.Username)
	assert.Equal(t, "admin", principal.Role)
	assert.True(t, principal.IsAdmin())
}

func TestExtractPrincipalRejectsBadTokens(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret"}

	_, err := extractVia(t, cfg, "")
	assert.Error(t, err)

	_, err = extractVia(t, cfg, "Bearer not-a-token")
	assert.Error(t, err)

	// A token signed with a different secret does not verify.
	other := &config.Config{JWTSecret: "othersecret"}
	token, err := GenerateJWTToken(7, "peggy", "learner", other)
	require.NoError(t, err)

	_, err = extractVia(t, cfg, "Bearer "+token)
	assert.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, Principal{Role: "admin"}.IsAdmin())
	assert.False(t, Principal{Role: "instructor"}.IsAdmin())
	assert.False(t, Principal{Role: "learner"}.IsAdmin())
	assert.False(t, Principal{}.IsAdmin())
}
