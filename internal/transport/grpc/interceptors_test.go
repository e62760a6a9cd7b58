package grpcapi

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/bookstore.v1.BookstoreService/PlaceOrder"}

func TestRecoveryInterceptor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	interceptor := RecoveryInterceptor(logger.WithField("component", "test"))

	resp, err := interceptor(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		panic("boom")
	})
	require.Nil(t, resp)
	require.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
	require.Equal(t, "boom", hook.LastEntry().Data["panic"])

	resp, err = interceptor(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestLoggingInterceptor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	interceptor := LoggingInterceptor(logger.WithField("component", "test"))

	_, err := interceptor(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.NotFound, "order not found")
	})
	require.Equal(t, codes.NotFound, status.Code(err))
	require.Equal(t, log.InfoLevel, hook.LastEntry().Level)
	require.Equal(t, "NotFound", hook.LastEntry().Data["code"])
	require.Equal(t, testInfo.FullMethod, hook.LastEntry().Data["method"])

	_, err = interceptor(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, log.DebugLevel, hook.LastEntry().Level)
}
