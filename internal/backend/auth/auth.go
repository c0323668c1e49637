// Package auth resolves the acting user of a request.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// DefaultUserHeader carries the user id when no JWT secret is configured
const DefaultUserHeader = "X-User-Id"

const userIDKey = "userID"

// ErrUnauthenticated is returned when a request carries no usable identity
var ErrUnauthenticated = errors.New("unauthenticated")

type Config struct {
	// JWTSecret enables HS256 bearer tokens; the sub claim is the user id
	JWTSecret  string
	UserHeader string
}

// Identity stores the acting user id on the echo context
func Identity(cfg Config) echo.MiddlewareFunc {
	header := cfg.UserHeader
	if header == "" {
		header = DefaultUserHeader
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var userID string
			var err error
			if cfg.JWTSecret != "" {
				userID, err = userFromBearer(c.Request().Header.Get(echo.HeaderAuthorization), cfg.JWTSecret)
			} else {
				userID = strings.TrimSpace(c.Request().Header.Get(header))
				if userID == "" {
					err = fmt.Errorf("%w: missing %s header", ErrUnauthenticated, header)
				}
			}
			if err != nil {
				return err
			}
			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

func userFromBearer(authHeader, secret string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("%w: authorization header required", ErrUnauthenticated)
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: invalid authorization header format", ErrUnauthenticated)
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return sub, nil
}

// UserID returns the id stored by Identity, or "" outside the middleware
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// IssueToken signs an HS256 token for userID
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
