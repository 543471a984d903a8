package api

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/mentora/internal/chat"
	"github.com/illegalcall/mentora/internal/credits"
	"github.com/illegalcall/mentora/internal/llm"
	"github.com/illegalcall/mentora/internal/models"
)

func (s *Server) handleListReports(c *fiber.Ctx) error {
	uid := s.userID(c)

	reports := []models.Report{}
	err := s.db.DB.SelectContext(c.Context(), &reports,
		`SELECT id, user_id, title, text, created_at
		 FROM reports WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		s.logger.Error("Failed to fetch reports", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch reports",
		})
	}

	return c.JSON(fiber.Map{"reports": reports})
}

// handleCreateReport generates a report in one LLM call: the report prompt
// for the requested type, followed by the extracted text of each named
// document. Billed the same way as a chat turn.
func (s *Server) handleCreateReport(c *fiber.Ctx) error {
	uid := s.userID(c)

	var req models.NewReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Title == "" || req.PromptType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title and prompt_type are required",
		})
	}
	if len(req.DocumentIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one document is required",
		})
	}

	var promptText string
	err := s.db.DB.GetContext(c.Context(), &promptText,
		`SELECT text FROM prompts WHERE kind = $1 AND key = $2`,
		models.PromptKindReport, req.PromptType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Unknown report type",
			})
		}
		s.logger.Error("Failed to fetch report prompt", "error", err, "type", req.PromptType)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create report",
		})
	}

	texts := make([]string, 0, len(req.DocumentIDs))
	for _, docID := range req.DocumentIDs {
		text, err := s.documentText(c, uid, docID)
		if err != nil {
			if errors.Is(err, errDocumentNotReady) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": fmt.Sprintf("Document %s not found or not ready", docID),
				})
			}
			s.logger.Error("Failed to load document text", "error", err, "document_id", docID)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create report",
			})
		}
		texts = append(texts, text)
	}
	source := strings.Join(texts, "\n\n")

	if err := s.ledger.Check(c.Context(), uid, len(source), credits.CheckOptions{}); err != nil {
		return s.errorResponse(c, err)
	}

	text, err := s.llm.Chat(c.Context(), []llm.Message{
		{Role: models.RoleSystem, Content: promptText},
		{Role: models.RoleUser, Content: source},
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "rate_limit_exceeded") {
			return s.errorResponse(c, fmt.Errorf("%w: %v", chat.ErrRateLimited, err))
		}
		s.logger.Error("Report generation failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to generate report",
		})
	}

	var id int
	err = s.db.DB.QueryRowContext(c.Context(),
		`INSERT INTO reports (user_id, title, text) VALUES ($1, $2, $3) RETURNING id`,
		uid, req.Title, text,
	).Scan(&id)
	if err != nil {
		s.logger.Error("Failed to save report", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save report",
		})
	}

	if err := s.usage.AddReport(c.Context(), uid); err != nil {
		s.logger.Warn("Failed to record report usage", "error", err, "uid", uid)
	}
	if _, err := s.ledger.Debit(c.Context(), uid, len(source), models.PriceChatInput); err != nil {
		s.logger.Error("Failed to debit report input", "error", err, "uid", uid)
	}
	if _, err := s.ledger.Debit(c.Context(), uid, len(text), models.PriceChatOutput); err != nil {
		s.logger.Error("Failed to debit report output", "error", err, "uid", uid)
	}

	return c.Status(fiber.StatusCreated).JSON(models.Report{
		ID:     id,
		UserID: uid,
		Title:  req.Title,
		Text:   text,
	})
}

var errDocumentNotReady = errors.New("document not found or not ready")

// documentText reassembles a ready document from its stored chunks. Only
// documents the caller owns can seed a report.
func (s *Server) documentText(c *fiber.Ctx, uid, docID string) (string, error) {
	var count int
	err := s.db.DB.GetContext(c.Context(), &count,
		`SELECT COUNT(*) FROM documents
		 WHERE id = $1 AND user_id = $2 AND status = $3`,
		docID, uid, models.DocStatusReady)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", errDocumentNotReady
	}

	var chunks []string
	err = s.db.DB.SelectContext(c.Context(), &chunks,
		`SELECT content FROM chunks WHERE document_id = $1 ORDER BY id`, docID)
	if err != nil {
		return "", err
	}
	return strings.Join(chunks, "\n"), nil
}

func (s *Server) handleGetReport(c *fiber.Ctx) error {
	uid := s.userID(c)

	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid report ID",
		})
	}

	var report models.Report
	err = s.db.DB.GetContext(c.Context(), &report,
		`SELECT id, user_id, title, text, created_at
		 FROM reports WHERE id = $1 AND user_id = $2`, id, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Report not found",
			})
		}
		s.logger.Error("Failed to fetch report", "error", err, "report_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch report",
		})
	}

	return c.JSON(report)
}

func (s *Server) handleDeleteReport(c *fiber.Ctx) error {
	uid := s.userID(c)

	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid report ID",
		})
	}

	res, err := s.db.DB.ExecContext(c.Context(),
		`DELETE FROM reports WHERE id = $1 AND user_id = $2`, id, uid)
	if err != nil {
		s.logger.Error("Failed to delete report", "error", err, "report_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete report",
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
