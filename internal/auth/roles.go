package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/domain"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// RequireService ensures the caller is a trusted internal service.
func RequireService() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeService {
			return apperrors.NewForbidden("service subject required")
		}
		return c.Next()
	}
}

// RequireRoleAtLeast ensures the token carries a role of at least min.
// Service subjects pass unconditionally.
func RequireRoleAtLeast(min domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized(http.StatusText(http.StatusUnauthorized))
		}
		if principal.SubjectType == domain.SubjectTypeService {
			return c.Next()
		}
		if !principal.RoleOrEmpty().AtLeast(min) {
			return apperrors.NewInsufficientAuthority("insufficient role", map[string]any{"required": min})
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated (user or service).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized(http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
