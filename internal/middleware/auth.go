package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"logitrack/internal/common"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AuthClaims are the JWT claims issued at login and verified per request.
type AuthClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and attaches the authenticated
// principal to the request context. Tokens are either service-issued (HS256
// with the shared secret) or minted by an external identity provider and
// verified against its JWKS endpoint.
type AuthMiddleware struct {
	secret []byte
	jwks   *keyfunc.JWKS
}

func NewAuthMiddleware(secret, jwksURL string) (*AuthMiddleware, error) {
	m := &AuthMiddleware{secret: []byte(secret)}
	if jwksURL != "" {
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Printf("JWKS refresh failed: %v", err)
			},
		})
		if err != nil {
			return nil, err
		}
		m.jwks = jwks
	}
	return m, nil
}

// Authenticate parses and verifies the Authorization header and puts the
// principal into the request context for the ledger to stamp movements with.
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token format")
			}

			claims, err := m.parseToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			ctx := common.WithPrincipal(c.Request().Context(), common.Principal{
				ID:    claims.Subject,
				Email: claims.Email,
			})
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func (m *AuthMiddleware) parseToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err == nil && token.Valid {
		return claims, nil
	}

	// Fall back to the identity provider's keys when configured.
	if m.jwks != nil {
		claims = &AuthClaims{}
		token, jwksErr := jwt.ParseWithClaims(tokenString, claims, m.jwks.Keyfunc)
		if jwksErr == nil && token.Valid {
			return claims, nil
		}
	}
	return nil, err
}
