// Package middleware provides authentication, logging, tracing, metrics and
// rate limiting middleware for the HTTP server.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"yatube/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "yatube"
	TokenAudience = "yatube-web"
	// TokenCookie is the cookie carrying the session token for browser clients.
	TokenCookie = "token"

	localIdentity = "identity"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Identity is the authenticated caller extracted from a valid token.
type Identity struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// Auth issues and verifies session tokens and guards login-only routes.
type Auth struct {
	secret   []byte
	loginURL string
	ttl      time.Duration
	secure   bool
	redis    *redis.Client
}

// NewAuth builds the authenticator. rdb may be nil, in which case revocation
// is not supported.
func NewAuth(cfg *config.Config, rdb *redis.Client) *Auth {
	return &Auth{
		secret:   []byte(cfg.JWTSecret),
		loginURL: cfg.LoginURL,
		ttl:      cfg.TokenTTL(),
		secure:   cfg.IsProduction(),
		redis:    rdb,
	}
}

// IssueToken signs a token for the user and returns it with its expiry.
func (a *Auth) IssueToken(userID uint, username string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	exp := now.Add(a.ttl)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, time.Unix(exp.Unix(), 0), nil
}

// ParseToken validates raw and returns the identity it carries.
func (a *Auth) ParseToken(ctx context.Context, raw string) (*Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	id := &Identity{UserID: uint(userID), ExpiresAt: exp.Time}
	id.Username, _ = claims["username"].(string)
	id.JTI, _ = claims["jti"].(string)

	if id.JTI != "" && a.redis != nil {
		n, err := a.redis.Exists(ctx, revokedKey(id.JTI)).Result()
		if err == nil && n > 0 {
			return nil, ErrTokenRevoked
		}
	}
	return id, nil
}

// Revoke blacklists the token until it would have expired anyway.
func (a *Auth) Revoke(ctx context.Context, id *Identity) error {
	if a.redis == nil || id == nil || id.JTI == "" {
		return nil
	}
	ttl := time.Until(id.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return a.redis.Set(ctx, revokedKey(id.JTI), 1, ttl).Err()
}

func revokedKey(jti string) string {
	return "blacklist:" + jti
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the session cookie.
func TokenFromRequest(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Cookies(TokenCookie)
}

// Authenticate resolves the caller when a valid token is present. Anonymous
// requests pass through untouched.
func (a *Auth) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := TokenFromRequest(c)
		if raw == "" {
			return c.Next()
		}

		id, err := a.ParseToken(c.UserContext(), raw)
		if err != nil {
			if c.Cookies(TokenCookie) == raw {
				a.ClearSessionCookie(c)
			}
			return c.Next()
		}

		c.Locals(LocalUserID, id.UserID)
		c.Locals(LocalUsername, id.Username)
		c.Locals(localIdentity, id)
		c.SetUserContext(WithUser(c.UserContext(), id.UserID, id.Username))
		return c.Next()
	}
}

// LoginRequired redirects anonymous callers to the login page, carrying the
// requested URL in the next parameter.
func (a *Auth) LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := UserID(c); ok {
			return c.Next()
		}
		AuthRedirects.Inc()
		return c.Redirect(a.LoginRedirectURL(c.OriginalURL()), fiber.StatusFound)
	}
}

// LoginRedirectURL builds "<login>?next=<path>" keeping slashes readable.
func (a *Auth) LoginRedirectURL(next string) string {
	if next == "" {
		return a.loginURL
	}
	return a.loginURL + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// SetSessionCookie stores the token for browser clients.
func (a *Auth) SetSessionCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (a *Auth) ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// UserID returns the authenticated caller, if any.
func UserID(c *fiber.Ctx) (uint, bool) {
	uid, ok := c.Locals(LocalUserID).(uint)
	return uid, ok && uid != 0
}

// CurrentIdentity returns the identity resolved by Authenticate.
func CurrentIdentity(c *fiber.Ctx) (*Identity, bool) {
	id, ok := c.Locals(localIdentity).(*Identity)
	return id, ok
}
