package api

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/illegalcall/mentora/internal/models"
	"github.com/illegalcall/mentora/internal/pkg/supabase"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"type"`
}

// ValidateCredentials is swapped out in tests.
var ValidateCredentials = supabase.ValidateCredentials

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	s.logger.Info("Authentication attempt", "email", req.Email)

	uid, err := ValidateCredentials(req.Email, req.Password)
	if err != nil {
		s.logger.Error("Authentication error", "error", err)

		errorMessage := "Authentication service error"
		if s.cfg.Server.Environment != "production" {
			errorMessage = fmt.Sprintf("Authentication error: %v", err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": errorMessage,
		})
	}

	if uid == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	profile, err := s.ensureProfile(c, uid)
	if err != nil {
		s.logger.Error("Failed to load profile", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load profile",
		})
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":   uid,
		"admin": profile.IsAdmin,
		"exp":   time.Now().Add(s.cfg.JWT.Expiration).Unix(),
		"iat":   time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	s.logger.Info("User successfully authenticated", "uid", uid)

	return c.JSON(LoginResponse{
		Token:     tokenString,
		TokenType: "Bearer",
	})
}

// ensureProfile returns the user's profile, creating it with defaults on
// first login.
func (s *Server) ensureProfile(c *fiber.Ctx, uid string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.DB.GetContext(c.Context(), &profile,
		`SELECT id, credits, level, is_admin, created_at FROM profiles WHERE id = $1`, uid)
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	_, err = s.db.DB.ExecContext(c.Context(),
		`INSERT INTO profiles (id, credits, level) VALUES ($1, $2, $3)`,
		uid, s.cfg.Credits.DefaultBalance, models.LevelBeginner,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.DB.GetContext(c.Context(), &profile,
		`SELECT id, credits, level, is_admin, created_at FROM profiles WHERE id = $1`, uid)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
