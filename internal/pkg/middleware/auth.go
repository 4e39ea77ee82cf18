package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkellner/bookshop/internal/pkg/session"
)

// SessionKeyAdmin marks a session as an authenticated admin session.
const SessionKeyAdmin = "is_admin"

func isAdminSession(c *fiber.Ctx) bool {
	return session.GetSessionValue(c, SessionKeyAdmin) == "true"
}

// RequireAdmin ensures a logged-in admin web session; redirects to the login
// page otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !isAdminSession(c) {
		return c.Redirect("/admin/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdminAPI ensures a logged-in admin session for API routes and
// returns JSON 401 instead of a redirect.
func RequireAdminAPI(c *fiber.Ctx) error {
	if !isAdminSession(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "admin login required",
		})
	}
	return c.Next()
}
