package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"itracksy/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var (
	// ErrMissingToken is returned when no bearer token was presented
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers bad signatures, wrong algorithms and malformed tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for tokens past their exp claim
	ErrExpiredToken = errors.New("token expired")
)

// Context key under which the verified admin email is stored
const ContextKeyEmail = "auth_email"

// Claims are the fields read from the auth provider's access token
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager verifies provider-issued admin tokens
type Manager struct {
	config *config.Config
	secret []byte
	parser *jwt.Parser
}

// NewManager creates a new authentication manager
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config: cfg,
		secret: []byte(cfg.AuthJWTSecret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// ValidateToken verifies an HS256 access token and returns its claims
func (am *Manager) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	if len(am.secret) == 0 {
		return nil, fmt.Errorf("%w: auth secret not configured", ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := am.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return am.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))
	return claims, nil
}

// bearerToken reads the Authorization header, falling back to the token query parameter
func bearerToken(c echo.Context) string {
	token := c.Request().Header.Get("Authorization")
	if token != "" {
		token, _ = strings.CutPrefix(token, "Bearer ")
		return strings.TrimSpace(token)
	}
	return c.QueryParam("token")
}

// Middleware creates middleware for admin route authentication: 401 without a
// valid token, 403 when the token's email is not an allowed admin
func Middleware(authManager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := authManager.ValidateToken(bearerToken(c))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Unauthorized. Please login first.",
				})
			}

			if !authManager.config.IsAdminEmail(claims.Email) {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "Forbidden. Admin access required.",
				})
			}

			// Store the admin email in context for handlers to use
			c.Set(ContextKeyEmail, claims.Email)

			return next(c)
		}
	}
}

// CronMiddleware guards scheduler-triggered routes with the CRON_SECRET bearer token
func CronMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Unauthorized",
				})
			}
			return next(c)
		}
	}
}
