package middleware

import (
	"context"
	"strings"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/mlukic/sprintsync-api/internal/models"
	"github.com/mlukic/sprintsync-api/internal/services"
)

const (
	PrincipalKey = "principal"
	UserEmailKey = "user_email"
)

// Auth validates the bearer token and resolves the caller to a Principal.
// Everything downstream works with the Principal, never raw credentials.
func Auth(jwtService *services.JWTService, identityService *services.IdentityService) drift.HandlerFunc {
	return func(c *drift.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Unauthorized("missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.Unauthorized("invalid authorization header format")
			return
		}

		claims, err := jwtService.ValidateAccessToken(parts[1])
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		principal, err := identityService.Resolve(context.Background(), claims.UserID)
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(UserEmailKey, claims.Email)

		c.Next()
	}
}

func GetPrincipal(c *drift.Context) (models.Principal, bool) {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(models.Principal); ok {
			return p, true
		}
	}
	return models.Principal{}, false
}

func GetUserEmail(c *drift.Context) string {
	if email, ok := c.Get(UserEmailKey); ok {
		if e, ok := email.(string); ok {
			return e
		}
	}
	return ""
}
