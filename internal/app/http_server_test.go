package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/bookstore/internal/health"
	"github.com/vladislavdragonenkov/bookstore/internal/version"
)

func newTestRouter(t *testing.T, checkers ...healthcheck.Checker) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(version.NewBuildInfoCollector())

	health := healthcheck.NewHandler(version.GetVersion())
	for i, c := range checkers {
		health.RegisterChecker(string(rune('a'+i)), c)
	}
	return newOpsRouter(reg, health)
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code, w.Body.String()
}

func TestOpsRouter_Endpoints(t *testing.T) {
	router := newTestRouter(t)

	code, body := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "bookstore_build_info")

	code, body = get(t, router, "/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"status":"healthy"`)

	code, body = get(t, router, "/livez")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)

	code, body = get(t, router, "/readyz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", body)

	code, _ = get(t, router, "/unknown")
	require.Equal(t, http.StatusNotFound, code)
}

func TestOpsRouter_NotReady(t *testing.T) {
	router := newTestRouter(t, healthcheck.NewFuncChecker("postgres", func(context.Context) error {
		return errors.New("connection refused")
	}))

	code, body := get(t, router, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "not ready", body)

	code, _ = get(t, router, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = get(t, router, "/livez")
	require.Equal(t, http.StatusOK, code)
}

func TestStartOpsServer(t *testing.T) {
	logger := log.WithField("test", "ops-server")

	srv, addr, err := startOpsServer("127.0.0.1:0", newTestRouter(t), logger)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/livez")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	shutdownHTTP(srv, logger)
	shutdownHTTP(nil, logger)

	_, err = http.Get("http://" + addr.String() + "/livez")
	require.Error(t, err)
}

func TestStartOpsServer_AddressInUse(t *testing.T) {
	logger := log.WithField("test", "ops-server")

	srv, addr, err := startOpsServer("127.0.0.1:0", newTestRouter(t), logger)
	require.NoError(t, err)
	defer shutdownHTTP(srv, logger)

	_, _, err = startOpsServer(addr.String(), newTestRouter(t), logger)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "address already in use") || strings.Contains(err.Error(), "bind"))
}
