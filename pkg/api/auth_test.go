package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskiziarecords/OpenGate/pkg/api"
)

func token(t *testing.T, v *api.TokenValidator, subject string, ttl time.Duration) string {
	t.Helper()
	tok, err := v.Issue(&api.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}})
	require.NoError(t, err)
	return tok
}

func TestRequireBearer(t *testing.T) {
	v := api.NewTokenValidator("s3cret")
	var subject string
	h := api.RequireBearer(v, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := api.ClaimsFrom(r.Context())
		require.True(t, ok)
		subject = c.Subject
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/admit", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("Basic abc"))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer not-a-jwt"))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer "+token(t, v, "ci", -time.Minute)))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer "+token(t, v, "", time.Minute)))

	other := api.NewTokenValidator("other")
	assert.Equal(t, http.StatusUnauthorized, do("Bearer "+token(t, other, "ci", time.Minute)))

	assert.Equal(t, http.StatusNoContent, do("Bearer "+token(t, v, "ci", time.Minute)))
	assert.Equal(t, "ci", subject)
}

func TestRequireBearer_RejectsOtherAlgorithms(t *testing.T) {
	v := api.NewTokenValidator("s3cret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &api.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ci"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = v.Validate(tok)
	assert.Error(t, err)
}

func TestRequireBearer_Disabled(t *testing.T) {
	assert.Nil(t, api.NewTokenValidator(""))
	called := false
	h := api.RequireBearer(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
