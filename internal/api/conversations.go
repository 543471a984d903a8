package api

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/mentora/internal/chat"
	"github.com/illegalcall/mentora/internal/models"
)

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	uid := s.userID(c)

	conversations := []models.Conversation{}
	err := s.db.DB.SelectContext(c.Context(), &conversations,
		`SELECT id, user_id, name, created_at, updated_at
		 FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC`, uid)
	if err != nil {
		s.logger.Error("Failed to fetch conversations", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch conversations",
		})
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	uid := s.userID(c)

	var req models.NewConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		req.Name = "New conversation"
	}

	var id int
	err := s.db.DB.QueryRowContext(c.Context(),
		`INSERT INTO conversations (user_id, name) VALUES ($1, $2) RETURNING id`,
		uid, req.Name,
	).Scan(&id)
	if err != nil {
		s.logger.Error("Failed to create conversation", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create conversation",
		})
	}

	// An optional first message runs a full chat turn immediately.
	if req.Message != "" {
		reply, err := s.chat.Send(c.Context(), chat.SendInput{
			UserID:         uid,
			ConversationID: id,
			Message:        req.Message,
		})
		if err != nil {
			return s.errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(models.SendMessageResponse{
			ConversationID: id,
			Reply:          reply,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation": fiber.Map{"id": id, "name": req.Name},
	})
}

// loadOwnConversation fetches a conversation and enforces ownership.
func (s *Server) loadOwnConversation(c *fiber.Ctx, uid string) (*models.Conversation, error) {
	id, err := c.ParamsInt("id")
	if err != nil {
		return nil, errBadConversationID
	}

	var conv models.Conversation
	err = s.db.DB.GetContext(c.Context(), &conv,
		`SELECT id, user_id, name, created_at, updated_at
		 FROM conversations WHERE id = $1 AND user_id = $2`, id, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

var (
	errBadConversationID    = errors.New("invalid conversation ID")
	errConversationNotFound = errors.New("conversation not found")
)

func (s *Server) conversationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errBadConversationID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation ID",
		})
	case errors.Is(err, errConversationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	default:
		s.logger.Error("Failed to fetch conversation", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch conversation",
		})
	}
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	uid := s.userID(c)

	conv, err := s.loadOwnConversation(c, uid)
	if err != nil {
		return s.conversationError(c, err)
	}

	messages := []models.Message{}
	err = s.db.DB.SelectContext(c.Context(), &messages,
		`SELECT id, conversation_id, seq, role, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY seq`, conv.ID)
	if err != nil {
		s.logger.Error("Failed to fetch messages", "error", err, "conversation_id", conv.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch messages",
		})
	}

	return c.JSON(fiber.Map{
		"conversation": conv,
		"messages":     messages,
	})
}

func (s *Server) handleRenameConversation(c *fiber.Ctx) error {
	uid := s.userID(c)

	conv, err := s.loadOwnConversation(c, uid)
	if err != nil {
		return s.conversationError(c, err)
	}

	var req models.RenameConversationRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	_, err = s.db.DB.ExecContext(c.Context(),
		`UPDATE conversations SET name = $1 WHERE id = $2`, req.Name, conv.ID)
	if err != nil {
		s.logger.Error("Failed to rename conversation", "error", err, "conversation_id", conv.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rename conversation",
		})
	}

	return c.JSON(fiber.Map{"id": conv.ID, "name": req.Name})
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	uid := s.userID(c)

	conv, err := s.loadOwnConversation(c, uid)
	if err != nil {
		return s.conversationError(c, err)
	}

	_, err = s.db.DB.ExecContext(c.Context(),
		`DELETE FROM conversations WHERE id = $1`, conv.ID)
	if err != nil {
		s.logger.Error("Failed to delete conversation", "error", err, "conversation_id", conv.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete conversation",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// handleSendMessage runs one chat turn, optionally grounded in a named
// collection.
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	uid := s.userID(c)

	conv, err := s.loadOwnConversation(c, uid)
	if err != nil {
		return s.conversationError(c, err)
	}

	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	input := chat.SendInput{
		UserID:         uid,
		ConversationID: conv.ID,
		Message:        req.Message,
	}

	if req.Collection != "" {
		collectionID, err := s.resolveCollection(c, uid, req.Collection)
		if err != nil {
			if errors.Is(err, errCollectionNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Collection not found",
				})
			}
			s.logger.Error("Failed to resolve collection", "error", err, "collection", req.Collection)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to resolve collection",
			})
		}
		input.CollectionID = collectionID
	}

	reply, err := s.chat.Send(c.Context(), input)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(models.SendMessageResponse{
		ConversationID: conv.ID,
		Reply:          reply,
	})
}
