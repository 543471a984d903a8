package api

import (
	"github.com/gofiber/fiber/v2"
)

// handleGetUsage returns the caller's usage aggregate for the current month.
func (s *Server) handleGetUsage(c *fiber.Ctx) error {
	uid := s.userID(c)

	u, err := s.usage.Current(c.Context(), uid)
	if err != nil {
		s.logger.Error("Failed to fetch usage", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch usage",
		})
	}

	return c.JSON(u)
}

// handleGetUserUsage is the admin view of any user's current month.
func (s *Server) handleGetUserUsage(c *fiber.Ctx) error {
	uid := c.Params("uid")
	if uid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	u, err := s.usage.Current(c.Context(), uid)
	if err != nil {
		s.logger.Error("Failed to fetch usage", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch usage",
		})
	}

	return c.JSON(u)
}
