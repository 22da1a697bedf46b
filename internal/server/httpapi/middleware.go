package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sgalindo-dev/veriauth/internal/server/auth"
)

const sessionLocalsKey = "session_claims"

// requireSession rejects requests that do not carry a valid Bearer session
// token and stores the parsed claims for downstream handlers.
func (s *Server) requireSession(c *fiber.Ctx) error {

	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization token"})
	}

	claims, err := auth.ParseSessionToken(token, s.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization token"})
	}

	c.Locals(sessionLocalsKey, claims)
	return c.Next()
}

func sessionFromContext(c *fiber.Ctx) *auth.SessionClaims {
	claims, _ := c.Locals(sessionLocalsKey).(*auth.SessionClaims)
	return claims
}
