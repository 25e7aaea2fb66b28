package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

var sessionJWT = config.JWTConfig{Secret: "secret", Issuer: "shopfront", ExpirationMinutes: 10}

type fakeSessions struct {
	revoked   []string
	rotated   []string
	presented []string
	nextID    string
	nextToken string
	err       error
}

func (f *fakeSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	f.rotated = append(f.rotated, oldAccessID)
	f.presented = append(f.presented, provided)
	return f.nextID, f.nextToken, f.err
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	f.revoked = append(f.revoked, accessID)
	return f.err
}

// bearer mints an access token issued at issuedAt and returns the request
// header value along with the token's session id.
func bearer(t *testing.T, userID uuid.UUID, issuedAt time.Time) (string, string) {
	t.Helper()
	jti := session.NewAccessID()
	token, err := auth.MintAccessToken(sessionJWT, issuedAt, auth.AccessTokenPayload{
		UserID: userID,
		Email:  "buyer@example.com",
		Role:   enums.RoleUser,
		JTI:    jti,
	})
	require.NoError(t, err)
	return "Bearer " + token, jti
}

func TestAuthLogoutRevokesSession(t *testing.T) {
	for name, issuedAt := range map[string]time.Time{
		"live token":    time.Now(),
		"expired token": time.Now().Add(-time.Hour),
	} {
		t.Run(name, func(t *testing.T) {
			sessions := &fakeSessions{}
			header, jti := bearer(t, uuid.New(), issuedAt)
			req := newRequest(http.MethodPost, "/api/auth/logout", "")
			req.Header.Set("Authorization", header)

			rec := serve(AuthLogout(sessions, sessionJWT, nil), req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, []string{jti}, sessions.revoked)
		})
	}
}

func TestAuthLogoutRejectsMissingOrForeignToken(t *testing.T) {
	foreign, err := auth.MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else", ExpirationMinutes: 10},
		time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.NoError(t, err)

	for name, header := range map[string]string{
		"no header":      "",
		"empty bearer":   "Bearer ",
		"foreign issuer": "Bearer " + foreign,
	} {
		t.Run(name, func(t *testing.T) {
			sessions := &fakeSessions{}
			req := newRequest(http.MethodPost, "/api/auth/logout", "")
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := serve(AuthLogout(sessions, sessionJWT, nil), req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, sessions.revoked)
		})
	}
}

func TestAuthRefreshReissuesTokens(t *testing.T) {
	sessions := &fakeSessions{nextID: "new-jti", nextToken: "new-refresh"}
	userID := uuid.New()
	header, jti := bearer(t, userID, time.Now().Add(-time.Hour))

	req := newRequest(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"old-refresh"}`)
	req.Header.Set("Authorization", header)
	rec := serve(AuthRefresh(sessions, sessionJWT, nil), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []string{jti}, sessions.rotated)
	assert.Equal(t, []string{"old-refresh"}, sessions.presented)

	var out refreshResponse
	decodeData(t, rec, &out)
	assert.Equal(t, "new-refresh", out.RefreshToken)

	claims, err := auth.ParseAccessToken(sessionJWT, out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "new-jti", claims.ID)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "buyer@example.com", claims.Email)
	assert.Equal(t, enums.RoleUser, claims.Role)
}

func TestAuthRefreshFailures(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		err      error
		want     int
		wantCode string
	}{
		{name: "refresh token missing", body: `{}`, want: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "refresh token rejected", body: `{"refreshToken":"bad"}`, err: session.ErrInvalidRefreshToken, want: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "session store down", body: `{"refreshToken":"r"}`, err: errors.New("redis down"), want: http.StatusServiceUnavailable, wantCode: "DEPENDENCY_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header, _ := bearer(t, uuid.New(), time.Now())
			req := newRequest(http.MethodPost, "/api/auth/refresh", tc.body)
			req.Header.Set("Authorization", header)

			rec := serve(AuthRefresh(&fakeSessions{err: tc.err}, sessionJWT, nil), req)
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, rec).Code)
		})
	}
}
