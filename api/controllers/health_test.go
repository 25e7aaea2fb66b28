package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestWelcomeAndLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := serve(Welcome(cfg), newRequest(http.MethodGet, "/", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Shopfront-Env"))

	rec = serve(HealthLive(cfg), newRequest(http.MethodGet, "/health/live", ""))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := serve(HealthReady(cfg, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}, nil), newRequest(http.MethodGet, "/health/ready", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeData(t, rec, &body)
	assert.Equal(t, "ready", body["status"])
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	deps := map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("connection refused")}}

	rec := serve(HealthReady(cfg, deps, nil), newRequest(http.MethodGet, "/health/ready", ""))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	apiErr := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeDependency), apiErr.Code)
	details, ok := apiErr.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "connection refused", details["redis"])
	assert.NotContains(t, details, "db")
}
