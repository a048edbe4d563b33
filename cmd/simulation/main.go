package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// The simulation drives a running server instance: it signs in as the
// configured user, streams randomized orders (some at the market so
// they fill at once, some with off-market bids so they rest PENDING),
// triggers sweeps and reports per-route latency. The server and its
// quote provider must be reachable before starting.
const (
	minOrders     = 15
	maxOrders     = 150
	numWorkers    = 5
	serverAddress = "http://localhost:8080"

	username = "admin"
	password = "1234"
)

var (
	symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}
	actions = []string{"BUY", "SELL"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the trading API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	mu        sync.Mutex
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It signs in to the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"login":     {name: "Login"},
			"order":     {name: "Submit Order"},
			"portfolio": {name: "Portfolio"},
			"history":   {name: "History"},
			"sweep":     {name: "Sweep"},
		},
	}

	token, err := sc.login()
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	stats := sc.stats[route]
	stats.addDuration(time.Since(start))
	if failed {
		stats.failures++
	}
}

// login signs in with the demo credentials and returns a JWT token
func (sc *simulationClient) login() (string, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("login", start, failed) }()

	credentials := map[string]string{
		"username": username,
		"password": password,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		failed = true
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/login", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("login failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return "", err
	}

	return result.Data.Token, nil
}

// doJSON performs an authenticated request and decodes the response envelope
func (sc *simulationClient) doJSON(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

type orderPayload struct {
	Symbol   string `json:"symbol"`
	Action   string `json:"action"`
	Quantity string `json:"quantity"`
	BidPrice string `json:"bid_price"`
}

type orderResult struct {
	Success bool `json:"success"`
	Data    struct {
		TransactionID string `json:"transaction_id"`
		Symbol        string `json:"symbol"`
		Action        string `json:"action"`
		Status        string `json:"status"`
	} `json:"data"`
}

// submitOrder submits a new order to the API
func (sc *simulationClient) submitOrder(order orderPayload) (*orderResult, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("order", start, failed) }()

	var result orderResult
	if err := sc.doJSON("POST", "/api/v1/orders", order, &result); err != nil {
		failed = true
		return nil, err
	}
	if result.Data.TransactionID == "" {
		failed = true
		return nil, fmt.Errorf("no transaction ID in response")
	}
	return &result, nil
}

// triggerSweep asks the server to resolve pending orders now
func (sc *simulationClient) triggerSweep() error {
	start := time.Now()
	failed := false
	defer func() { sc.record("sweep", start, failed) }()

	if err := sc.doJSON("POST", "/api/v1/internal/sweep", nil, nil); err != nil {
		failed = true
		return err
	}
	return nil
}

// fetchPortfolio renders the holdings view
func (sc *simulationClient) fetchPortfolio() error {
	start := time.Now()
	failed := false
	defer func() { sc.record("portfolio", start, failed) }()

	if err := sc.doJSON("GET", "/api/v1/portfolio", nil, nil); err != nil {
		failed = true
		return err
	}
	return nil
}

// fetchHistory renders the transaction history
func (sc *simulationClient) fetchHistory() error {
	start := time.Now()
	failed := false
	defer func() { sc.record("history", start, failed) }()

	if err := sc.doJSON("GET", "/api/v1/orders", nil, nil); err != nil {
		failed = true
		return err
	}
	return nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-15s %8s %8s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-15s %8d %8d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// randomOrder builds a plausible order. Most bids sit away from the
// market so the order rests PENDING for the sweep to resolve; the
// rest carry a bid close to the base price range and tend to fill at
// submission.
func randomOrder() orderPayload {
	action := actions[rand.Intn(len(actions))]
	bid := float64(rand.Intn(900) + 100)
	if rand.Float64() < 0.6 {
		// Off-market bid: well below for BUY, well above for SELL
		if action == "BUY" {
			bid = bid * 0.5
		} else {
			bid = bid * 2
		}
	}

	return orderPayload{
		Symbol:   symbols[rand.Intn(len(symbols))],
		Action:   action,
		Quantity: fmt.Sprintf("%d", rand.Intn(100)+1),
		BidPrice: fmt.Sprintf("%.2f", bid),
	}
}

// main runs the trading simulation against a running server
func main() {
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	stats := struct {
		TotalAttempts  int
		Accepted       int
		ExecutedAtOnce int
		Pending        int
		Rejected       int
		StartTime      time.Time
		Symbols        map[string]int
		Actions        map[string]int
		mu             sync.Mutex
	}{
		StartTime: time.Now(),
		Symbols:   make(map[string]int),
		Actions:   make(map[string]int),
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < targetOrders/numWorkers; j++ {
				order := randomOrder()

				result, err := simClient.submitOrder(order)

				stats.mu.Lock()
				stats.TotalAttempts++
				if err != nil {
					// SELLs against a flat position are expected to be
					// rejected with INSUFFICIENT_HOLDINGS
					stats.Rejected++
					stats.mu.Unlock()
					log.Warn().Err(err).
						Int("worker_id", workerID).
						Str("symbol", order.Symbol).
						Str("action", order.Action).
						Msg("Order rejected")
					continue
				}
				stats.Accepted++
				stats.Symbols[result.Data.Symbol]++
				stats.Actions[result.Data.Action]++
				if result.Data.Status == "EXECUTED" {
					stats.ExecutedAtOnce++
				} else {
					stats.Pending++
				}
				stats.mu.Unlock()

				log.Info().
					Int("worker_id", workerID).
					Str("transaction_id", result.Data.TransactionID).
					Str("symbol", result.Data.Symbol).
					Str("action", result.Data.Action).
					Str("status", result.Data.Status).
					Msg("Order accepted")

				time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	// Resolve whatever went PENDING, then render both views the way
	// the UI shell would
	if err := simClient.triggerSweep(); err != nil {
		log.Error().Err(err).Msg("Failed to trigger sweep")
	}
	if err := simClient.fetchPortfolio(); err != nil {
		log.Error().Err(err).Msg("Failed to fetch portfolio")
	}
	if err := simClient.fetchHistory(); err != nil {
		log.Error().Err(err).Msg("Failed to fetch history")
	}

	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("TRADING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Order Statistics
----------------
Attempts:          %d
Accepted:          %d
Executed at once:  %d
Rested pending:    %d
Rejected:          %d
Duration:          %v

Symbol Distribution
-------------------
`, stats.TotalAttempts, stats.Accepted, stats.ExecutedAtOnce, stats.Pending,
		stats.Rejected, duration.Round(time.Millisecond))

	maxSymbolCount := 0
	for _, count := range stats.Symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}
	for symbol, count := range stats.Symbols {
		barLength := int(float64(count) / float64(maxSymbolCount) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-6s: %s (%d)\n", symbol, bar, count)
	}

	fmt.Println("\nAction Distribution")
	fmt.Println("-------------------")
	for action, count := range stats.Actions {
		barLength := int(float64(count) / float64(stats.TotalAttempts) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-4s: %s (%d)\n", action, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	acceptRate := float64(stats.Accepted) / float64(stats.TotalAttempts) * 100
	log.Info().
		Float64("accept_rate", acceptRate).
		Int("attempts", stats.TotalAttempts).
		Int("accepted", stats.Accepted).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}
