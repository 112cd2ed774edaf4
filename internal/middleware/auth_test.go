package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_TokenRoundTrip(t *testing.T) {
	auth := NewAuth("secret", time.Hour, nil)

	token, err := auth.IssueToken("user-1", "SPWALLET")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	auth := NewAuth("secret", time.Hour, nil)

	_, err := auth.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token signed with a different secret fails verification.
	other := NewAuth("other-secret", time.Hour, nil)
	token, err := other.IssueToken("user-1", "")
	require.NoError(t, err)
	_, err = auth.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_RejectsExpiredToken(t *testing.T) {
	auth := NewAuth("secret", -time.Minute, nil)
	token, err := auth.IssueToken("user-1", "")
	require.NoError(t, err)

	_, err = auth.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_HandlerInjectsIdentity(t *testing.T) {
	auth := NewAuth("secret", time.Hour, nil)
	token, err := auth.IssueToken("user-1", "SPWALLET")
	require.NoError(t, err)

	var gotUser, gotWallet string
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotWallet = GetWallet(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/quests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotUser)
	assert.Equal(t, "SPWALLET", gotWallet)
}

func TestAuth_HandlerRejectsMissingOrMalformed(t *testing.T) {
	auth := NewAuth("secret", time.Hour, nil)
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without auth")
	}))

	for name, header := range map[string]string{
		"missing":   "",
		"no bearer": "Basic abc",
		"garbage":   "Bearer nope",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/quests", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}
