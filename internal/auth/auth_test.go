package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	cred := Credential{UserID: uuid.New(), Role: "employee"}
	tok, err := IssueToken(testSecret, cred)
	require.NoError(t, err)

	got, err := ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, cred, got)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken([]byte("other-secret"), Credential{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseToken(testSecret, tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParseToken(testSecret, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsBadSubject(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "not-a-uuid",
	}).SignedString(testSecret)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func middlewareRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Middleware(testSecret), func(c *gin.Context) {
		cred, ok := FromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no credential"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": cred.UserID.String()})
	})
	return r
}

func TestMiddlewareBearerHeader(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	tok, err := IssueToken(testSecret, Credential{UserID: userID, Role: "employee"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	middlewareRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestMiddlewareQueryToken(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken(testSecret, Credential{UserID: uuid.New()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected?access_token="+tok, nil)
	middlewareRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	t.Parallel()

	r := middlewareRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
