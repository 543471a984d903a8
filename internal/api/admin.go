package api

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/mentora/internal/models"
)

// Content management endpoints. Reads are open to any authenticated user,
// writes sit behind requireAdmin.

func (s *Server) handleListCategories(c *fiber.Ctx) error {
	categories := []models.Category{}
	err := s.db.DB.SelectContext(c.Context(), &categories,
		`SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		s.logger.Error("Failed to fetch categories", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch categories",
		})
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (s *Server) handleCreateCategory(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	var id int
	err := s.db.DB.QueryRowContext(c.Context(),
		`INSERT INTO categories (name) VALUES ($1) RETURNING id`, req.Name,
	).Scan(&id)
	if err != nil {
		s.logger.Error("Failed to create category", "error", err, "name", req.Name)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create category",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "name": req.Name})
}

func (s *Server) handleDeleteCategory(c *fiber.Ctx) error {
	return s.deleteByID(c, "categories", "category")
}

func (s *Server) handleListAnnouncements(c *fiber.Ctx) error {
	announcements := []models.Announcement{}
	err := s.db.DB.SelectContext(c.Context(), &announcements,
		`SELECT id, category_id, title, body, created_at
		 FROM announcements ORDER BY created_at DESC`)
	if err != nil {
		s.logger.Error("Failed to fetch announcements", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch announcements",
		})
	}
	return c.JSON(fiber.Map{"announcements": announcements})
}

func (s *Server) handleCreateAnnouncement(c *fiber.Ctx) error {
	var req struct {
		CategoryID int    `json:"category_id"`
		Title      string `json:"title"`
		Body       string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	var id int
	err := s.db.DB.QueryRowContext(c.Context(),
		`INSERT INTO announcements (category_id, title, body)
		 VALUES ($1, $2, $3) RETURNING id`,
		req.CategoryID, req.Title, req.Body,
	).Scan(&id)
	if err != nil {
		s.logger.Error("Failed to create announcement", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create announcement",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) handleDeleteAnnouncement(c *fiber.Ctx) error {
	return s.deleteByID(c, "announcements", "announcement")
}

// handleUpsertPrompt inserts or replaces the prompt text for a kind+key pair.
func (s *Server) handleUpsertPrompt(c *fiber.Ctx) error {
	var req struct {
		Kind string `json:"kind"`
		Key  string `json:"key"`
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Kind != models.PromptKindLevel && req.Kind != models.PromptKindReport {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Kind must be level or report",
		})
	}
	if req.Key == "" || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Key and text are required",
		})
	}

	var id int
	err := s.db.DB.QueryRowContext(c.Context(),
		`INSERT INTO prompts (kind, key, text) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, key) DO UPDATE SET text = EXCLUDED.text
		 RETURNING id`,
		req.Kind, req.Key, req.Text,
	).Scan(&id)
	if err != nil {
		s.logger.Error("Failed to upsert prompt", "error", err, "kind", req.Kind, "key", req.Key)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save prompt",
		})
	}

	return c.JSON(fiber.Map{"id": id, "kind": req.Kind, "key": req.Key})
}

func (s *Server) handleDeletePrompt(c *fiber.Ctx) error {
	return s.deleteByID(c, "prompts", "prompt")
}

// handleListQuestions returns the predefined questions matching the caller's
// knowledge level.
func (s *Server) handleListQuestions(c *fiber.Ctx) error {
	uid := s.userID(c)

	var level string
	err := s.db.DB.GetContext(c.Context(), &level,
		`SELECT level FROM profiles WHERE id = $1`, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		s.logger.Error("Failed to fetch profile level", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch questions",
		})
	}

	questions := []models.Question{}
	err = s.db.DB.SelectContext(c.Context(), &questions,
		`SELECT id, category_id, level, text FROM questions
		 WHERE level = $1 ORDER BY id`, level)
	if err != nil {
		s.logger.Error("Failed to fetch questions", "error", err, "level", level)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch questions",
		})
	}

	return c.JSON(fiber.Map{"questions": questions})
}

func (s *Server) handleCreateQuestion(c *fiber.Ctx) error {
	var req struct {
		CategoryID int    `json:"category_id"`
		Level      string `json:"level"`
		Text       string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text is required",
		})
	}
	if !models.ValidLevel(req.Level) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Level must be beginner, intermediate or pro",
		})
	}

	var id int
	err := s.db.DB.QueryRowContext(c.Context(),
		`INSERT INTO questions (category_id, level, text)
		 VALUES ($1, $2, $3) RETURNING id`,
		req.CategoryID, req.Level, req.Text,
	).Scan(&id)
	if err != nil {
		s.logger.Error("Failed to create question", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create question",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) handleDeleteQuestion(c *fiber.Ctx) error {
	return s.deleteByID(c, "questions", "question")
}

// handleUpsertPrice sets the billing rate for one price kind.
func (s *Server) handleUpsertPrice(c *fiber.Ctx) error {
	var req models.UpsertPriceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	switch req.Name {
	case models.PriceChatInput, models.PriceChatOutput, models.PriceDocument, models.PriceSearch:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown price name",
		})
	}
	if req.Value < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Value must not be negative",
		})
	}

	_, err := s.db.DB.ExecContext(c.Context(),
		`INSERT INTO prices (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		req.Name, req.Value)
	if err != nil {
		s.logger.Error("Failed to upsert price", "error", err, "name", req.Name)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save price",
		})
	}

	return c.JSON(models.Price{Name: req.Name, Value: req.Value})
}

// deleteByID is the shared delete-one-row handler for flat admin resources.
func (s *Server) deleteByID(c *fiber.Ctx, table, name string) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ID",
		})
	}

	res, err := s.db.DB.ExecContext(c.Context(),
		`DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("Failed to delete "+name, "error", err, "id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete " + name,
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
