package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func healthy(name string) Checker {
	return NewFuncChecker(name, func(context.Context) error { return nil })
}

func failing(name string) Checker {
	return NewFuncChecker(name, func(context.Context) error { return errors.New("service unavailable") })
}

func serve(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var response Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return w, response
}

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", healthy("postgres"))

	w, response := serve(t, handler.ServeHTTP)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.Equal(t, StatusHealthy, response.Status)
	require.Equal(t, "v1.0.0", response.Version)
	require.Len(t, response.Checks, 1)
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", failing("postgres"))
	handler.RegisterChecker("redis", healthy("redis"))

	w, response := serve(t, handler.ServeHTTP)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, StatusUnhealthy, response.Status)
	require.Equal(t, "service unavailable", response.Checks["postgres"].Message)
	require.Equal(t, StatusHealthy, response.Checks["redis"].Status)
}

func TestHealthHandler_OptionalFailureIsDegraded(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", healthy("postgres"))
	handler.RegisterOptional("outbox", failing("outbox"))

	w, response := serve(t, handler.ServeHTTP)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, StatusDegraded, response.Status)
	require.Equal(t, StatusDegraded, response.Checks["outbox"].Status)
}

func TestHealthHandler_CheckTimeout(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.SetTimeout(20 * time.Millisecond)
	handler.RegisterChecker("slow", NewFuncChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	w, response := serve(t, handler.ServeHTTP)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, context.DeadlineExceeded.Error(), response.Checks["slow"].Message)
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", healthy("postgres"))
	handler.RegisterOptional("outbox", failing("outbox"))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ready", w.Body.String())
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", failing("postgres"))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "not ready", w.Body.String())
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestPostgresChecker(t *testing.T) {
	ok := NewPostgresChecker(pingerFunc(func(context.Context) error { return nil })).Check(context.Background())
	require.Equal(t, StatusHealthy, ok.Status)
	require.Equal(t, "postgres", ok.Name)

	down := NewPostgresChecker(pingerFunc(func(context.Context) error { return errors.New("connection refused") })).Check(context.Background())
	require.Equal(t, StatusUnhealthy, down.Status)
	require.Equal(t, "connection refused", down.Message)
}

func TestRedisChecker_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	check := NewRedisChecker(client).Check(ctx)
	require.Equal(t, StatusUnhealthy, check.Status)
	require.Equal(t, "redis", check.Name)
	require.NotEmpty(t, check.Message)
}
