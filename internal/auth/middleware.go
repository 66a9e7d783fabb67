package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"omnichat/internal/redis"

	"github.com/gin-gonic/gin"
)

const (
	contextUserKey = "auth_user_id"
	tokenKeyPrefix = "auth:token:"
	bearerScheme   = "Bearer "
)

// parseBearerToken extracts the token from an Authorization header. Only the
// exact "Bearer <token>" form is accepted; a bare token or a glued scheme is
// rejected.
func parseBearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerScheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerScheme):])
	if token == "" {
		return "", false
	}
	return token, true
}

// Service resolves bearer tokens to user ids. Token issuance happens in the
// identity system upstream; this core only trusts what it finds in redis.
type Service struct {
	cache *redis.Client
}

func NewService(cache *redis.Client) *Service {
	return &Service{cache: cache}
}

// ResolveToken maps a bearer token to the owning user id.
func (s *Service) ResolveToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, errors.New("empty token")
	}
	raw, err := s.cache.Get(ctx, tokenKeyPrefix+token)
	if err != nil {
		if err == redis.ErrCacheMiss {
			return 0, errors.New("unknown token")
		}
		return 0, fmt.Errorf("lookup token: %w", err)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, errors.New("malformed token record")
	}
	return userID, nil
}

// StoreToken registers a token for a user. Exposed for tests and for local
// single-node setups without an external identity service.
func (s *Service) StoreToken(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return s.cache.Set(ctx, tokenKeyPrefix+token, strconv.FormatInt(userID, 10), ttl)
}

// Middleware extracts the bearer token, resolves the user and aborts with 401
// when no valid identity is present.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := parseBearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		userID, err := s.ResolveToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(contextUserKey, userID)
		c.Next()
	}
}

// UserIDFromContext returns the authenticated user id set by Middleware.
func UserIDFromContext(c *gin.Context) (int64, bool) {
	val, ok := c.Get(contextUserKey)
	if !ok {
		return 0, false
	}
	id, ok := val.(int64)
	return id, ok
}
