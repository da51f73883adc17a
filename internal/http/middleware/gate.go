package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const usernameKey = "authsvc_username"

// TokenValidator reports the subject of a valid access token.
type TokenValidator interface {
	Validate(token string) (subject string, ok bool)
}

// AccessGate rejects requests without a valid bearer access token, except for
// the exact paths listed in publicPaths. On success the token subject is
// available to handlers through Username.
func AccessGate(validator TokenValidator, publicPaths ...string) fiber.Handler {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[normalizePath(p)] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := public[normalizePath(c.Path())]; ok {
			return c.Next()
		}

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		username, ok := validator.Validate(token)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals(usernameKey, username)

		return c.Next()
	}
}

// Username returns the caller identity established by AccessGate.
func Username(c *fiber.Ctx) (string, bool) {
	username, ok := c.Locals(usernameKey).(string)
	return username, ok && username != ""
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func normalizePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
