package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	jwtv4 "github.com/golang-jwt/jwt/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/illegalcall/mentora/internal/chat"
	"github.com/illegalcall/mentora/internal/config"
	"github.com/illegalcall/mentora/internal/credits"
	"github.com/illegalcall/mentora/internal/llm"
	"github.com/illegalcall/mentora/internal/storage"
	"github.com/illegalcall/mentora/internal/usage"
	"github.com/illegalcall/mentora/pkg/database"
)

// ChatService runs a single chat turn; satisfied by chat.Assembler.
type ChatService interface {
	Send(ctx context.Context, in chat.SendInput) (string, error)
}

// LLMClient is the one-shot completion surface used for report generation;
// satisfied by llm.Client.
type LLMClient interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	db       *database.Clients
	producer sarama.SyncProducer
	storage  storage.Storage
	ledger   *credits.Ledger
	usage    *usage.Recorder
	chat     ChatService
	llm      LLMClient
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, db *database.Clients, producer sarama.SyncProducer, chatSvc ChatService, llmClient LLMClient) (*Server, error) {
	localStorage, err := storage.NewLocalStorage(cfg.Storage.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.Storage.MaxSize),
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
	}))

	server := &Server{
		app:      app,
		cfg:      cfg,
		db:       db,
		producer: producer,
		storage:  localStorage,
		ledger:   credits.NewLedger(db.DB),
		usage:    usage.NewRecorder(db.DB),
		chat:     chatSvc,
		llm:      llmClient,
		logger:   slog.Default(),
	}

	// Routes
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")

	// Public routes
	api.Post("/login", s.handleLogin)

	// Protected routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
	}))

	protected.Get("/profile", s.handleGetProfile)
	protected.Patch("/profile/level", s.handleUpdateLevel)
	protected.Get("/usage", s.handleGetUsage)

	protected.Get("/conversations", s.handleListConversations)
	protected.Post("/conversations", s.handleCreateConversation)
	protected.Get("/conversations/:id", s.handleGetConversation)
	protected.Patch("/conversations/:id", s.handleRenameConversation)
	protected.Delete("/conversations/:id", s.handleDeleteConversation)
	protected.Post("/conversations/:id/messages", s.handleSendMessage)

	protected.Get("/collections", s.handleListCollections)
	protected.Get("/collections/:id/documents", s.handleListDocuments)
	protected.Post("/collections/:id/documents", s.handleUploadDocument)
	protected.Get("/documents/:id/status", s.handleDocumentStatus)

	protected.Get("/reports", s.handleListReports)
	protected.Post("/reports", s.handleCreateReport)
	protected.Get("/reports/:id", s.handleGetReport)
	protected.Delete("/reports/:id", s.handleDeleteReport)

	protected.Get("/announcements", s.handleListAnnouncements)
	protected.Get("/categories", s.handleListCategories)
	protected.Get("/questions", s.handleListQuestions)

	// Admin routes
	admin := protected.Group("/admin", s.requireAdmin)
	admin.Post("/categories", s.handleCreateCategory)
	admin.Delete("/categories/:id", s.handleDeleteCategory)
	admin.Post("/announcements", s.handleCreateAnnouncement)
	admin.Delete("/announcements/:id", s.handleDeleteAnnouncement)
	admin.Post("/prompts", s.handleUpsertPrompt)
	admin.Delete("/prompts/:id", s.handleDeletePrompt)
	admin.Post("/questions", s.handleCreateQuestion)
	admin.Delete("/questions/:id", s.handleDeleteQuestion)
	admin.Post("/prices", s.handleUpsertPrice)
	admin.Post("/collections", s.handleCreateCollection)
	admin.Delete("/collections/:id", s.handleDeleteCollection)
	admin.Delete("/documents/:id", s.handleDeleteDocument)
	admin.Post("/credits", s.handleGrantCredits)
	admin.Get("/usage/:uid", s.handleGetUserUsage)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

// userID extracts the uid claim set by handleLogin from the verified token.
func (s *Server) userID(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwtv4.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(jwtv4.MapClaims)
	if !ok {
		return ""
	}
	uid, _ := claims["uid"].(string)
	return uid
}

// isAdmin reads the admin claim minted at login.
func (s *Server) isAdmin(c *fiber.Ctx) bool {
	token, ok := c.Locals("user").(*jwtv4.Token)
	if !ok {
		return false
	}
	claims, ok := token.Claims.(jwtv4.MapClaims)
	if !ok {
		return false
	}
	admin, _ := claims["admin"].(bool)
	return admin
}

func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if !s.isAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin privileges required",
		})
	}
	return c.Next()
}

// errorResponse maps the error taxonomy onto HTTP statuses: business-rule
// failures get their own codes, infrastructure failures collapse to a
// sanitized 500-class message with the detail kept server-side.
func (s *Server) errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, credits.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "Not enough credits",
		})
	case errors.Is(err, chat.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "The model is rate limited, please try again later",
		})
	case errors.Is(err, chat.ErrNoAnswer):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No answer found in the selected collection",
		})
	case errors.Is(err, credits.ErrProfileNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	default:
		s.logger.Error("Request failed", "error", err, "path", c.Path())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process request",
		})
	}
}
