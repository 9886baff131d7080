package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/domain"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

func TestTokenRoundTripPerActorKind(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	for _, actor := range []domain.Actor{
		domain.Citizen{ID: "c-1", Name: "Lina"},
		domain.Employee{ID: "e-1", Name: "Elias", Agency: domain.AgencyWater},
		domain.Admin{ID: "a-1", Name: "Root"},
	} {
		token, _, err := tm.GenerateToken(actor)
		require.NoError(t, err)
		claims, err := tm.ParseToken(token)
		require.NoError(t, err)
		got, err := claims.Actor()
		require.NoError(t, err)
		assert.Equal(t, actor, got)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", 5).GenerateToken(domain.Admin{ID: "a"})
	require.NoError(t, err)
	_, err = NewTokenManager("two", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestClaimsActorValidation(t *testing.T) {
	c := &Claims{Kind: domain.ActorKindEmployee}
	c.Subject = "e-1"
	_, err := c.Actor()
	assert.Error(t, err, "employee without agency")

	c = &Claims{Kind: "ROBOT"}
	c.Subject = "r-1"
	_, err = c.Actor()
	assert.Error(t, err)
}

func newApp(tm *TokenManager, kinds ...domain.ActorKind) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.SendStatus(fe.Code)
			}
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/", NewAuthMiddleware(tm).Handle, RequireKind(kinds...), func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.SendString(actor.ActorID())
	})
	return app
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newApp(tm, domain.ActorKindEmployee)
	employeeToken, _, err := tm.GenerateToken(domain.Employee{ID: "e-1", Agency: domain.AgencyHealth})
	require.NoError(t, err)
	citizenToken, _, err := tm.GenerateToken(domain.Citizen{ID: "c-1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"wrong kind", "Bearer " + citizenToken, http.StatusForbidden},
		{"allowed", "Bearer " + employeeToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
