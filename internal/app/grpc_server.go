package app

import (
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	bookstorev1 "github.com/vladislavdragonenkov/bookstore/api/bookstore/v1"
	grpcapi "github.com/vladislavdragonenkov/bookstore/internal/transport/grpc"
)

// newGRPCServer собирает gRPC-сервер с метриками, логированием и health-сервисом.
func newGRPCServer(api bookstorev1.BookstoreServiceServer, reg prometheus.Registerer, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	grpcMetrics.EnableHandlingTimeHistogram()
	if err := reg.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcLogger := logger.WithField("layer", "grpc")
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		grpcapi.RecoveryInterceptor(grpcLogger),
		grpcapi.LoggingInterceptor(grpcLogger),
	))
	bookstorev1.RegisterBookstoreServiceServer(server, api)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(bookstorev1.ServiceName, healthpb.HealthCheckResponse_SERVING)

	grpcMetrics.InitializeMetrics(server)
	return server, healthServer
}

// registerCollector регистрирует коллектор, не падая на повторной регистрации.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector, logger *log.Entry) {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			logger.WithError(err).Warn("failed to register collector")
		}
	}
}
