package webserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// userKey is the gin context key holding the authenticated user ID.
const userKey = "uid"

// JWTMiddleware accepts HS256 bearer tokens whose "uid" claim names the user.
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "missing bearer token"})
			return
		}
		tok, err := jwt.Parse(h[7:], func(t *jwt.Token) (interface{}, error) { return secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid token"})
			return
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid token"})
			return
		}
		uid, ok := claims[userKey].(float64)
		if !ok || uid < 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "token has no user"})
			return
		}
		c.Set(userKey, uint64(uid))
		c.Next()
	}
}

// IssueToken signs a token for userID valid for ttl.
func IssueToken(userID uint64, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		userKey: userID,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func currentUser(c *gin.Context) uint64 {
	return c.GetUint64(userKey)
}
