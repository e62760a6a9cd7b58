package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	bookstorev1 "github.com/vladislavdragonenkov/bookstore/api/bookstore/v1"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/checkout"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/bookstore/internal/service/orderquery"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
	grpcapi "github.com/vladislavdragonenkov/bookstore/internal/transport/grpc"
)

// startBookstore поднимает сервис в памяти с одной книгой на складе.
func startBookstore(t *testing.T, bookID string, stock int32) bookstorev1.BookstoreServiceClient {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	entry := logger.WithField("component", "loadtest")

	store := memory.NewStore()
	require.NoError(t, store.Books().Create(context.Background(), domain.Book{
		ID:            bookID,
		Title:         "Contended Book",
		Price:         decimal.RequireFromString("12.30"),
		StockQuantity: stock,
	}))

	svc := checkout.NewService(store, store.Orders(), store.Timeline(), checkout.WithLogger(entry))
	queries := orderquery.NewService(store.Orders(), store.Books(), store.Timeline(), svc.CancellationWindow(), entry)
	guard := idempotency.NewGuard(memory.NewIdempotencyRepository(), idempotency.DefaultTTL, nil)

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	bookstorev1.RegisterBookstoreServiceServer(server, grpcapi.NewServer(svc, queries,
		grpcapi.WithIdempotency(guard), grpcapi.WithLogger(entry)))
	go func() { _ = server.Serve(listener) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
		_ = svc.Shutdown(context.Background())
	})
	return bookstorev1.NewBookstoreServiceClient(conn)
}

func testConfig(mode loadMode, total int) config {
	return config{
		total:       total,
		concurrency: 8,
		connections: 1,
		timeout:     5 * time.Second,
		mode:        mode,
		bookID:      "contended",
		quantity:    1,
		userTag:     "lt",
		phone:       "+79990000000",
		address:     "Load Test Street 1, Moscow",
	}
}

func TestExecute_NoOversellUnderContention(t *testing.T) {
	client := startBookstore(t, "contended", 7)

	result, err := execute([]bookstorev1.BookstoreServiceClient{client}, testConfig(modePlace, 20))
	require.NoError(t, err)

	require.Equal(t, int64(20), result.TotalScenarios)
	require.Zero(t, result.FailedScenarios)
	require.Equal(t, int64(7), result.Stock.Placed)
	require.Equal(t, int64(13), result.Stock.Rejected)
	require.Equal(t, int32(7), result.Stock.Before)
	require.Equal(t, int32(0), result.Stock.After)
	require.True(t, result.Stock.Consistent)
}

func TestExecute_PlaceCancelRestoresStock(t *testing.T) {
	client := startBookstore(t, "contended", 3)

	result, err := execute([]bookstorev1.BookstoreServiceClient{client}, testConfig(modePlaceCancel, 12))
	require.NoError(t, err)

	require.Zero(t, result.FailedScenarios)
	require.Equal(t, result.Stock.Placed, result.Stock.Cancelled)
	require.Equal(t, int32(3), result.Stock.After)
	require.True(t, result.Stock.Consistent)
	require.Contains(t, result.Methods, "CancelOrder")
}

func TestExecute_UnknownBook(t *testing.T) {
	client := startBookstore(t, "contended", 1)
	cfg := testConfig(modePlace, 1)
	cfg.bookID = "missing"

	_, err := execute([]bookstorev1.BookstoreServiceClient{client}, cfg)
	require.ErrorContains(t, err, "read stock before run")
}

func TestParseMode(t *testing.T) {
	mode, err := parseMode(" place ")
	require.NoError(t, err)
	require.Equal(t, modePlace, mode)

	mode, err = parseMode("place-cancel")
	require.NoError(t, err)
	require.Equal(t, modePlaceCancel, mode)

	_, err = parseMode("bad")
	require.ErrorContains(t, err, "unsupported mode")
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-book", "b1", "-total", "50", "-mode", "place-cancel", "-timeout", "2s"})
	require.NoError(t, err)
	require.Equal(t, "b1", cfg.bookID)
	require.Equal(t, 50, cfg.total)
	require.Equal(t, modePlaceCancel, cfg.mode)
	require.Equal(t, 2*time.Second, cfg.timeout)
	require.Equal(t, 1, cfg.quantity)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "book required", args: nil, wantErr: "book is required"},
		{name: "zero total", args: []string{"-book", "b1", "-total", "0"}, wantErr: "total must be > 0"},
		{name: "zero concurrency", args: []string{"-book", "b1", "-concurrency", "0"}, wantErr: "concurrency must be > 0"},
		{name: "zero quantity", args: []string{"-book", "b1", "-quantity", "0"}, wantErr: "quantity must be > 0"},
		{name: "bad mode", args: []string{"-book", "b1", "-mode", "create"}, wantErr: "unsupported mode"},
		{name: "bad timeout", args: []string{"-book", "b1", "-timeout", "soon"}, wantErr: "invalid value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.args)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCollectorAndReport(t *testing.T) {
	col := newCollector()
	col.record(scenarioMethod, 10*time.Millisecond, codes.OK)
	col.record(scenarioMethod, 30*time.Millisecond, codes.Internal)
	col.record("PlaceOrder", 5*time.Millisecond, codes.OK)
	col.record("PlaceOrder", 7*time.Millisecond, codes.FailedPrecondition)

	require.Equal(t, int64(1), col.count("PlaceOrder", codes.OK))
	require.Equal(t, int64(1), col.count("PlaceOrder", codes.FailedPrecondition))
	require.Zero(t, col.count("CancelOrder", codes.OK))

	result := col.buildReport(time.Now(), 2*time.Second)
	require.Equal(t, int64(2), result.TotalScenarios)
	require.Equal(t, int64(1), result.FailedScenarios)
	require.InDelta(t, 0.5, result.ErrorRate, 1e-9)
	require.InDelta(t, 1.0, result.RPS, 1e-9)
	require.NotContains(t, result.Methods, scenarioMethod)
	require.Equal(t, int64(2), result.Methods["PlaceOrder"].Calls)
	require.InDelta(t, 10.0, result.ScenarioLatencyMs.Min, 1e-9)
	require.InDelta(t, 30.0, result.ScenarioLatencyMs.Max, 1e-9)
}

func TestPercentileAndRatio(t *testing.T) {
	require.Zero(t, percentile(nil, 50))
	require.Equal(t, 4.0, percentile([]float64{4}, 99))
	require.InDelta(t, 2.5, percentile([]float64{1, 2, 3, 4}, 50), 1e-9)
	require.Zero(t, ratio(1, 0))
	require.InDelta(t, 0.25, ratio(1, 4), 1e-9)
	require.Equal(t, latencySummary{}, buildLatencySummary(nil))
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	result := report{TotalScenarios: 3, Stock: stockReport{Before: 5, After: 2, Consistent: true}}
	require.NoError(t, writeJSONReport("report.json", result))

	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var decoded report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, int64(3), decoded.TotalScenarios)
	require.True(t, decoded.Stock.Consistent)

	require.Error(t, writeJSONReport(".", result))
	require.ErrorContains(t, writeJSONReport("../escape.json", result), "inside current directory")
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, report{
		TotalScenarios: 2,
		Methods:        map[string]methodReport{"PlaceOrder": {Calls: 2, Success: 2}},
		Stock:          stockReport{Before: 2, After: 0, Expected: 0, Placed: 2, Consistent: true},
	}, testConfig(modePlace, 2))

	text := out.String()
	require.Contains(t, text, "mode=place book=contended total=2")
	require.Contains(t, text, "PlaceOrder: calls=2 success=2")
	require.Contains(t, text, "consistent=true")
}

func TestGRPCCode(t *testing.T) {
	require.Equal(t, codes.OK, grpcCode(nil))
	require.Equal(t, codes.Unknown, grpcCode(errors.New("plain")))
}
