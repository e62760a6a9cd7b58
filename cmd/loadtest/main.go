package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	bookstorev1 "github.com/vladislavdragonenkov/bookstore/api/bookstore/v1"
)

const (
	headerUserID         = "x-user-id"
	headerIdempotencyKey = "idempotency-key"

	scenarioMethod = "scenario"
)

type loadMode string

const (
	modePlace       loadMode = "place"
	modePlaceCancel loadMode = "place-cancel"
)

type config struct {
	addr        string
	total       int
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	bookID      string
	quantity    int
	userTag     string
	phone       string
	address     string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// stockReport сверяет остаток книги до и после прогона.
type stockReport struct {
	Before     int32 `json:"before"`
	After      int32 `json:"after"`
	Placed     int64 `json:"placed"`
	Cancelled  int64 `json:"cancelled"`
	Rejected   int64 `json:"rejected"`
	Expected   int32 `json:"expected"`
	Consistent bool  `json:"consistent"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Stock             stockReport             `json:"stock"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

// count возвращает число вызовов method с кодом code.
func (c *collector) count(method string, code codes.Code) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		return 0
	}
	return stats.codes[code.String()]
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, n := range stats.codes {
			codesCopy[code] = n
		}
		mr := methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
		if name == scenarioMethod {
			result.TotalScenarios = mr.Calls
			result.SuccessScenarios = mr.Success
			result.FailedScenarios = mr.Failed
			result.ErrorRate = mr.ErrorRate
			result.ScenarioLatencyMs = mr.LatencyMs
			continue
		}
		result.Methods[name] = mr
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total checkout scenarios to execute")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-cancel")
	fs.StringVar(&cfg.bookID, "book", "", "book id every scenario competes for")
	fs.IntVar(&cfg.quantity, "quantity", 1, "copies per order")
	fs.StringVar(&cfg.userTag, "user-tag", "load", "user id prefix")
	fs.StringVar(&cfg.phone, "phone", "+79990000000", "delivery phone")
	fs.StringVar(&cfg.address, "address", "Load Test Street 1, Moscow", "delivery address")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.bookID = strings.TrimSpace(cfg.bookID)

	switch {
	case cfg.total <= 0:
		return cfg, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case cfg.bookID == "":
		return cfg, errors.New("book is required")
	case strings.TrimSpace(cfg.userTag) == "":
		return cfg, errors.New("user-tag is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePlace:
		return modePlace, nil
	case modePlaceCancel:
		return modePlaceCancel, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]bookstorev1.BookstoreServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, bookstorev1.NewBookstoreServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := execute(clients, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 || !result.Stock.Consistent {
		os.Exit(1)
	}
}

// execute прогоняет сценарии и сверяет остаток книги с числом успешных заказов.
func execute(clients []bookstorev1.BookstoreServiceClient, cfg config) (report, error) {
	before, err := fetchStock(clients[0], cfg)
	if err != nil {
		return report{}, fmt.Errorf("read stock before run: %w", err)
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli bookstorev1.BookstoreServiceClient) {
			defer wg.Done()
			for id := range jobs {
				runScenario(cli, cfg, id, runID, col)
			}
		}(clients[workerID%len(clients)])
	}
	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))

	after, err := fetchStock(clients[0], cfg)
	if err != nil {
		return result, fmt.Errorf("read stock after run: %w", err)
	}
	placed := col.count("PlaceOrder", codes.OK)
	cancelled := col.count("CancelOrder", codes.OK)
	expected := before - int32(placed)*int32(cfg.quantity) + int32(cancelled)*int32(cfg.quantity)
	result.Stock = stockReport{
		Before:     before,
		After:      after,
		Placed:     placed,
		Cancelled:  cancelled,
		Rejected:   col.count("PlaceOrder", codes.FailedPrecondition),
		Expected:   expected,
		Consistent: after >= 0 && after == expected,
	}
	return result, nil
}

// runScenario оформляет заказ и, в режиме place-cancel, сразу его отменяет.
// Отказ из-за нехватки остатка считается ожидаемым исходом, а не ошибка сценария.
func runScenario(client bookstorev1.BookstoreServiceClient, cfg config, index int, runID string, col *collector) {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record(scenarioMethod, time.Since(scenarioStart), scenarioCode)
	}()

	userID := fmt.Sprintf("%s-%s-%d", cfg.userTag, runID, index)
	resp, err := callPlaceOrder(client, cfg, userID, fmt.Sprintf("lt-place-%s-%d", runID, index), col)
	if err != nil {
		if code := grpcCode(err); code != codes.FailedPrecondition {
			scenarioCode = code
		}
		return
	}
	if resp.Order == nil || resp.Order.ID == "" {
		scenarioCode = codes.Internal
		return
	}
	if cfg.mode != modePlaceCancel {
		return
	}

	cancelKey := fmt.Sprintf("lt-cancel-%s-%d", runID, index)
	if err := callCancelOrder(client, cfg.timeout, userID, resp.Order.ID, cancelKey, col); err != nil {
		scenarioCode = grpcCode(err)
	}
}

func outgoing(ctx context.Context, userID, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, headerUserID, userID, headerIdempotencyKey, key)
}

func callPlaceOrder(client bookstorev1.BookstoreServiceClient, cfg config, userID, key string, col *collector) (*bookstorev1.PlaceOrderResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	resp, err := client.PlaceOrder(outgoing(ctx, userID, key), &bookstorev1.PlaceOrderRequest{
		Lines:    []bookstorev1.OrderLine{{BookID: cfg.bookID, Quantity: int32(cfg.quantity)}},
		Delivery: bookstorev1.DeliveryInfo{Phone: cfg.phone, Address: cfg.address},
	})
	col.record("PlaceOrder", time.Since(start), grpcCode(err))
	return resp, err
}

func callCancelOrder(client bookstorev1.BookstoreServiceClient, timeout time.Duration, userID, orderID, key string, col *collector) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := client.CancelOrder(outgoing(ctx, userID, key), &bookstorev1.CancelOrderRequest{OrderID: orderID})
	col.record("CancelOrder", time.Since(start), grpcCode(err))
	return err
}

func fetchStock(client bookstorev1.BookstoreServiceClient, cfg config) (int32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	resp, err := client.GetBook(ctx, &bookstorev1.GetBookRequest{BookID: cfg.bookID})
	if err != nil {
		return 0, err
	}
	if resp.Book == nil {
		return 0, errors.New("empty book in response")
	}
	return resp.Book.StockQuantity, nil
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s book=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, cfg.bookID, result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}

	s := result.Stock
	_, _ = fmt.Fprintf(w, "stock: before=%d after=%d expected=%d placed=%d cancelled=%d rejected=%d consistent=%t\n",
		s.Before, s.After, s.Expected, s.Placed, s.Cancelled, s.Rejected, s.Consistent)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
