package middleware

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/tenant"
)

type TenantMiddleware struct {
	u  repository.UserRepository
	tr *tenant.Registry
}

func NewTenantMiddleware(u repository.UserRepository, tr *tenant.Registry) *TenantMiddleware {
	return &TenantMiddleware{u: u, tr: tr}
}

// TenantMiddleware refuses requests from users without a provisioned
// database and warms the handle for the ones that have it. Runs after
// auth so user_id is already in locals.
func (m *TenantMiddleware) TenantMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := strconv.ParseInt(c.Locals("user_id").(string), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid user",
			})
		}

		user, isExist, err := m.u.GetByID(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to look up user",
			})
		}

		if !isExist || user.DBName == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "No workspace database for this account",
			})
		}

		if _, err := m.tr.Get(c.Context(), user.DBName); err != nil {
			slog.Info(err.Error())
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Workspace database is unavailable",
			})
		}

		c.Locals("tenant_key", user.DBName)
		return c.Next()
	}
}
