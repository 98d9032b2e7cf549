package middleware

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mitcstore/mitc-api/internal/utils"
)

// RequireRole guards a route group. Anonymous callers get 401, signed-in
// callers outside roles get 403 with the accepted roles in details.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if role = normalizeRoleValue(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	accepted := make([]string, 0, len(allowed))
	for role := range allowed {
		accepted = append(accepted, role)
	}
	sort.Strings(accepted)

	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if _, ok := allowed[UserRole(c)]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", map[string][]string{"role": accepted})
		}
		return c.Next()
	}
}

// normalizeRoleValue reads a role stored in locals. Non-string values carry no role.
func normalizeRoleValue(value interface{}) string {
	role, _ := value.(string)
	return strings.ToLower(strings.TrimSpace(role))
}
