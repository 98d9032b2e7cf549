package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mitcstore/mitc-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID       = "user_id"
	LocalUserRole     = "user_role"
	LocalTokenID      = "token_id"
	LocalTokenExpires = "token_expires_at"
)

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RoleResolver returns the current role of a user from their profile.
type RoleResolver interface {
	ResolveRole(ctx context.Context, uid string) (string, error)
}

// JWTConfig configures JWTProtected.
type JWTConfig struct {
	Secret      string
	Revocations RevocationChecker
	Roles       RoleResolver
	// Optional lets requests without credentials through anonymously.
	Optional bool
}

// JWTProtected validates HS256 bearer tokens. Websocket clients may pass the token as ?token=.
// The role is re-read from the profile when a RoleResolver is configured so role changes apply
// without a new sign-in.
func JWTProtected(cfg JWTConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		if tokenString == "" {
			if cfg.Optional {
				return c.Next()
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.Secret), nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}
		userID, _ := claims["sub"].(string)
		userID = strings.TrimSpace(userID)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token subject")
		}

		tokenID, _ := claims["jti"].(string)
		if cfg.Revocations != nil && tokenID != "" {
			revoked, err := cfg.Revocations.IsRevoked(c.UserContext(), tokenID)
			if err != nil {
				return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to verify token")
			}
			if revoked {
				return utils.SendError(c, fiber.StatusUnauthorized, "token revoked")
			}
		}

		role := normalizeRole(claims["role"])
		if cfg.Roles != nil {
			resolved, err := cfg.Roles.ResolveRole(c.UserContext(), userID)
			if err != nil {
				return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to resolve role")
			}
			role = normalizeRole(resolved)
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRole, role)
		c.Locals(LocalTokenID, tokenID)
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			c.Locals(LocalTokenExpires, exp.Time)
		}

		return c.Next()
	}
}

// UserID returns the authenticated user id, empty for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// UserRole returns the role bound by JWTProtected.
func UserRole(c *fiber.Ctx) string {
	return normalizeRoleValue(c.Locals(LocalUserRole))
}

// TokenID returns the jti and expiry of the presented token.
func TokenID(c *fiber.Ctx) (string, time.Time) {
	id, _ := c.Locals(LocalTokenID).(string)
	expires, _ := c.Locals(LocalTokenExpires).(time.Time)
	return id, expires
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		return strings.TrimSpace(c.Query("token")), nil
	}

	const bearer = "bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", fmt.Errorf("invalid authorization header")
	}
	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", fmt.Errorf("invalid token")
	}
	return token, nil
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := strings.ToLower(strings.TrimSpace(str)); role != "" {
					return role
				}
			}
		}
	}
	return ""
}
