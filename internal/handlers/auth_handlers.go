package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"logitrack/internal/caching"
	"logitrack/internal/middleware"
	"logitrack/internal/models"
	"logitrack/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL          = 24 * time.Hour
	loginRateLimit    = 10
	loginRateWindow   = time.Minute
	minPasswordLength = 8
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	store    store.Store
	cacheSvc caching.CacheService
	secret   []byte
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(st store.Store, cacheSvc caching.CacheService, secret string) *AuthHandlers {
	return &AuthHandlers{
		store:    st,
		cacheSvc: cacheSvc,
		secret:   []byte(secret),
	}
}

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the issued token and the public user shape.
type AuthResponse struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expires_at"`
	User      *models.UserResponse `json:"user"`
}

// Signup handles POST /auth/signup
func (h *AuthHandlers) Signup(c echo.Context) error {
	ctx := c.Request().Context()

	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return echo.NewHTTPError(http.StatusBadRequest, "A valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return echo.NewHTTPError(http.StatusBadRequest, "Password must be at least 8 characters")
	}

	existing, err := h.userByEmail(ctx, req.Email)
	if err != nil {
		return httpError(err)
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusConflict, "User already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		DisplayName:  req.DisplayName,
		Role:         "operator",
	}
	id, err := h.store.Insert(ctx, store.Users, user)
	if err != nil {
		return httpError(err)
	}
	user.ID = id

	token, expiresAt, err := h.issueToken(ctx, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusCreated, AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Response(),
	})
}

// Login handles POST /auth/login
func (h *AuthHandlers) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	// Brute-force protection, keyed on the claimed email.
	limited, err := h.cacheSvc.IsRateLimited(ctx, "login:"+req.Email, loginRateLimit, loginRateWindow)
	if err == nil && limited {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts; try again later")
	}
	if err := h.cacheSvc.IncrementRateLimit(ctx, "login:"+req.Email, loginRateWindow); err != nil {
		c.Logger().Warnf("failed to record login attempt: %v", err)
	}

	user, err := h.userByEmail(ctx, req.Email)
	if err != nil {
		return httpError(err)
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	token, expiresAt, err := h.issueToken(ctx, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Response(),
	})
}

// Logout handles POST /auth/logout
func (h *AuthHandlers) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Session ID is required")
	}

	if err := h.cacheSvc.DeleteSession(ctx, req.SessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to end session")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

func (h *AuthHandlers) issueToken(ctx context.Context, user *models.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(tokenTTL)
	sessionID := uuid.New().String()

	claims := &middleware.AuthClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := h.cacheSvc.SetSession(ctx, sessionID, user.ID, tokenTTL); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (h *AuthHandlers) userByEmail(ctx context.Context, email string) (*models.User, error) {
	var users []*models.User
	err := h.store.Query(ctx, store.Users, store.Query{
		Filters: []store.Filter{{Field: "email", Op: store.OpEqual, Value: email}},
	}, &users)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}
