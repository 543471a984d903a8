package api

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/mentora/internal/models"
)

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	uid := s.userID(c)

	var profile models.Profile
	err := s.db.DB.GetContext(c.Context(), &profile,
		`SELECT id, credits, level, is_admin, created_at FROM profiles WHERE id = $1`, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		s.logger.Error("Failed to fetch profile", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profile",
		})
	}

	return c.JSON(fiber.Map{"profile": profile})
}

func (s *Server) handleUpdateLevel(c *fiber.Ctx) error {
	uid := s.userID(c)

	var req models.UpdateLevelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !models.ValidLevel(req.Level) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Level must be one of: beginner, intermediate, pro",
		})
	}

	res, err := s.db.DB.ExecContext(c.Context(),
		`UPDATE profiles SET level = $1 WHERE id = $2`, req.Level, uid)
	if err != nil {
		s.logger.Error("Failed to update level", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update level",
		})
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	return c.JSON(fiber.Map{"level": req.Level})
}

// handleGrantCredits adds credits to a user's balance (admin only).
func (s *Server) handleGrantCredits(c *fiber.Ctx) error {
	var req models.GrantCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.UserID == "" || req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and a positive amount are required",
		})
	}

	res, err := s.db.DB.ExecContext(c.Context(),
		`UPDATE profiles SET credits = credits + $1 WHERE id = $2`, req.Amount, req.UserID)
	if err != nil {
		s.logger.Error("Failed to grant credits", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to grant credits",
		})
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	s.logger.Info("Credits granted", "user_id", req.UserID, "amount", req.Amount)
	return c.JSON(fiber.Map{"success": true})
}
