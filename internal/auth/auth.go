// Package auth parses access tokens into request-scoped credentials. There is
// deliberately no package-level session state; every check receives the
// credential through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("auth: missing access token")
	ErrInvalidToken = errors.New("auth: invalid access token")
)

// Credential identifies the authenticated user for one request.
type Credential struct {
	UserID uuid.UUID
	Role   string
}

type ctxKey struct{}

func NewContext(ctx context.Context, cred Credential) context.Context {
	return context.WithValue(ctx, ctxKey{}, cred)
}

func FromContext(ctx context.Context) (Credential, bool) {
	cred, ok := ctx.Value(ctxKey{}).(Credential)
	return cred, ok
}

// ParseToken validates an HS256 token and extracts the credential. The user
// ID rides in "sub", the role in "role".
func ParseToken(secret []byte, tokenString string) (Credential, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return Credential{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Credential{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Credential{}, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Credential{}, ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	return Credential{UserID: userID, Role: role}, nil
}

// IssueToken mints a token for a credential. Used by tests and cmd/simulate;
// production tokens come from the identity service.
func IssueToken(secret []byte, cred Credential) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  cred.UserID.String(),
		"role": cred.Role,
	})
	return token.SignedString(secret)
}

// Middleware authenticates the request and stores the credential in the
// request context. Websocket upgrades cannot set headers from a browser, so
// the access_token query parameter is accepted as a fallback.
func Middleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			raw = c.Query("access_token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": ErrMissingToken.Error()})
			return
		}
		cred, err := ParseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": ErrInvalidToken.Error()})
			return
		}
		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), cred))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
