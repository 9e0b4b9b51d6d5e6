package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier implements Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	switch raw {
	case "goodtoken":
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "email": "test@example.com"}}, nil
	case "anonymous":
		return &fakeToken{data: map[string]interface{}{"email": "nobody@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func serveAuth(t *testing.T, header string, hooks ...ClaimsHook) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, hooks...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": Subject(c)})
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, "").Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, "BadHeader").Code)
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, "Bearer   ").Code)
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, "Bearer forged").Code)
}

func TestAuthMiddleware_RequiresSubject(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, "Bearer anonymous").Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	var seen map[string]interface{}
	rw := serveAuth(t, "Bearer goodtoken", func(ctx context.Context, claims map[string]interface{}) {
		seen = claims
	})

	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	assert.Equal(t, "user1", got["sub"])
	assert.Equal(t, "test@example.com", seen["email"])
}

func TestSubject_WithoutClaims(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", Subject(c))
	c.Set(ClaimsKey, "not a map")
	assert.Equal(t, "", Subject(c))
}
