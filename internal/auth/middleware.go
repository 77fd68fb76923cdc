package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reporting-service/internal/domain"
	apperrors "github.com/spec-kit/reporting-service/pkg/util"
)

const identityKey = "auth_identity"

// Guard validates bearer access tokens and attaches the caller's identity.
// It is deliberately stateless: a revoked session does not invalidate access
// tokens already issued, they simply age out at their own expiry.
type Guard struct {
	codec *TokenCodec
}

// NewGuard constructs the access-token middleware.
func NewGuard(codec *TokenCodec) *Guard {
	return &Guard{codec: codec}
}

// Handle enforces authentication for protected routes. Every failure mode
// (missing header, malformed header, bad signature, expiry) yields the same
// AUTH_UNAUTHORIZED response.
func (g *Guard) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("unauthorized")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("unauthorized")
	}

	claims, err := g.codec.VerifyAccess(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("unauthorized")
	}

	c.Locals(identityKey, &domain.Identity{UserID: claims.Subject, Role: claims.Role})
	return c.Next()
}

// RequireRoles permits the request iff the attached identity holds one of the
// allowed roles. An empty role list means any authenticated caller may pass.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("unauthorized")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[identity.Role]; !exists {
			return apperrors.NewForbidden("forbidden")
		}
		return c.Next()
	}
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok
}
