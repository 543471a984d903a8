package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestHandleLogin(t *testing.T) {
	origValidate := ValidateCredentials
	defer func() { ValidateCredentials = origValidate }()

	tests := []struct {
		name           string
		reqBody        LoginRequest
		validate       func(email, password string) (string, error)
		setupMock      func(mock sqlmock.Sqlmock)
		expectedStatus int
		checkResponse  func(*testing.T, *Server, *http.Response)
	}{
		{
			name: "successful login",
			reqBody: LoginRequest{
				Email:    "user@example.com",
				Password: "password",
			},
			validate: func(email, password string) (string, error) {
				return "uid-1", nil
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(
					`SELECT id, credits, level, is_admin, created_at FROM profiles WHERE id = $1`)).
					WithArgs("uid-1").
					WillReturnRows(sqlmock.NewRows(
						[]string{"id", "credits", "level", "is_admin"}).
						AddRow("uid-1", 100.0, "beginner", false))
			},
			expectedStatus: fiber.StatusOK,
			checkResponse: func(t *testing.T, server *Server, resp *http.Response) {
				var result LoginResponse
				err := json.NewDecoder(resp.Body).Decode(&result)
				assert.NoError(t, err)

				// Verify token structure
				assert.NotEmpty(t, result.Token)
				assert.Equal(t, "Bearer", result.TokenType)

				// Verify token validity
				token, err := jwt.Parse(result.Token, func(token *jwt.Token) (interface{}, error) {
					return []byte(server.cfg.JWT.Secret), nil
				})
				assert.NoError(t, err)
				assert.True(t, token.Valid)

				// Verify claims
				claims := token.Claims.(jwt.MapClaims)
				assert.Equal(t, "uid-1", claims["uid"])
				assert.Equal(t, false, claims["admin"])
				exp := int64(claims["exp"].(float64))
				assert.Greater(t, exp, time.Now().Unix())
			},
		},
		{
			name: "first login provisions a profile",
			reqBody: LoginRequest{
				Email:    "new@example.com",
				Password: "password",
			},
			validate: func(email, password string) (string, error) {
				return "uid-new", nil
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(
					`SELECT id, credits, level, is_admin, created_at FROM profiles WHERE id = $1`)).
					WithArgs("uid-new").
					WillReturnRows(sqlmock.NewRows(
						[]string{"id", "credits", "level", "is_admin"}))
				mock.ExpectExec(regexp.QuoteMeta(
					`INSERT INTO profiles (id, credits, level) VALUES ($1, $2, $3)`)).
					WithArgs("uid-new", 100.0, "beginner").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta(
					`SELECT id, credits, level, is_admin, created_at FROM profiles WHERE id = $1`)).
					WithArgs("uid-new").
					WillReturnRows(sqlmock.NewRows(
						[]string{"id", "credits", "level", "is_admin"}).
						AddRow("uid-new", 100.0, "beginner", false))
			},
			expectedStatus: fiber.StatusOK,
			checkResponse: func(t *testing.T, server *Server, resp *http.Response) {
				var result LoginResponse
				err := json.NewDecoder(resp.Body).Decode(&result)
				assert.NoError(t, err)
				assert.NotEmpty(t, result.Token)
			},
		},
		{
			name: "invalid credentials",
			reqBody: LoginRequest{
				Email:    "user@example.com",
				Password: "wrong",
			},
			validate: func(email, password string) (string, error) {
				return "", nil
			},
			expectedStatus: fiber.StatusUnauthorized,
			checkResponse: func(t *testing.T, server *Server, resp *http.Response) {
				var result map[string]string
				err := json.NewDecoder(resp.Body).Decode(&result)
				assert.NoError(t, err)
				assert.Equal(t, "Invalid credentials", result["error"])
			},
		},
		{
			name: "missing credentials",
			reqBody: LoginRequest{
				Email:    "",
				Password: "",
			},
			expectedStatus: fiber.StatusBadRequest,
			checkResponse: func(t *testing.T, server *Server, resp *http.Response) {
				var result map[string]string
				err := json.NewDecoder(resp.Body).Decode(&result)
				assert.NoError(t, err)
				assert.Equal(t, "Email and password are required", result["error"])
			},
		},
		{
			name: "auth service failure",
			reqBody: LoginRequest{
				Email:    "user@example.com",
				Password: "password",
			},
			validate: func(email, password string) (string, error) {
				return "", errors.New("gotrue unreachable")
			},
			expectedStatus: fiber.StatusInternalServerError,
			checkResponse: func(t *testing.T, server *Server, resp *http.Response) {
				var result map[string]string
				err := json.NewDecoder(resp.Body).Decode(&result)
				assert.NoError(t, err)
				assert.Contains(t, result["error"], "Authentication error")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, mock, _, _ := setupTestServer(t, nil, nil)
			server.app.Post("/api/login", server.handleLogin)

			if tt.validate != nil {
				ValidateCredentials = tt.validate
			}
			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			req := jsonRequest("POST", "/api/login", tt.reqBody)
			resp, err := server.app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			tt.checkResponse(t, server, resp)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
