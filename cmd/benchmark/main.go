// cmd/benchmark fires concurrent transfers at the engine to exercise OCC
// retries under contention, grounded on the teacher's cmd/benchmark/main.go.
// The teacher only knows how to drive load over HTTP; this adaptation adds
// an "inprocess" mode that calls internal/engine directly against an
// internal/store/memstore instance (no network, no server process needed to
// reproduce spec §8's P7 scenario), keeping the teacher's "http" mode for
// driving a real cmd/api process.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/engine"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/store/memstore"
)

var (
	mode          string
	targetURL     string
	concurrency   int
	duration      time.Duration
	workload      string
	totalAccounts int
)

var (
	totalRequests uint64
	successCount  uint64
	conflictCount uint64
	failOther     uint64
)

func init() {
	flag.StringVar(&mode, "mode", "inprocess", "Benchmark mode: inprocess | http")
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API base URL (http mode only)")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&totalAccounts, "accounts", 1000, "Number of accounts to seed (inprocess mode only)")
}

func main() {
	flag.Parse()
	log.Printf("Starting benchmark: mode=%s workload=%s workers=%d duration=%s", mode, workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	switch mode {
	case "inprocess":
		store := memstore.New()
		accounts := make([]domain.Account, totalAccounts)
		for i := range accounts {
			number, err := domain.GenerateAccountNumber(domain.Checking)
			if err != nil {
				log.Fatalf("generate account number: %v", err)
			}
			accounts[i] = domain.Account{
				ID:       uuid.NewString(),
				Number:   number,
				UserID:   uuid.NewString(),
				Type:     domain.Checking,
				Status:   domain.Active,
				Balance:  money.Amount(1_000_000),
				Currency: "USD",
			}
			store.SeedAccount(accounts[i])
		}
		eng := engine.New(store, nil)
		for i := 0; i < concurrency; i++ {
			go inProcessWorker(&wg, start, eng, accounts)
		}
	case "http":
		for i := 0; i < concurrency; i++ {
			go httpWorker(&wg, start)
		}
	default:
		log.Fatalf("unknown mode %q", mode)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func inProcessWorker(wg *sync.WaitGroup, start time.Time, eng *engine.Engine, accounts []domain.Account) {
	defer wg.Done()
	ctx := context.Background()
	amount, _ := money.ParseDecimalString("1.00")

	for time.Since(start) < duration {
		from, to := pickAccounts(accounts)
		key := fmt.Sprintf("bench-%s-%s-%d", from.Number, to.Number, time.Now().UnixNano())

		_, err := eng.Transfer(ctx, from.UserID, from.Number, to.Number, amount, "benchmark transfer", key)
		atomic.AddUint64(&totalRequests, 1)
		switch {
		case err == nil:
			atomic.AddUint64(&successCount, 1)
		case domain.CodeOf(err) == domain.CodeConcurrencyConflict:
			atomic.AddUint64(&conflictCount, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
}

func httpWorker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		payload := map[string]interface{}{
			"source_account_number":      fmt.Sprintf("CHK-BENCH-%06d", rand.Intn(totalAccounts)),
			"destination_account_number": fmt.Sprintf("CHK-BENCH-%06d", rand.Intn(totalAccounts)),
			"amount":                     "1.00",
			"operation_key":              fmt.Sprintf("bench-%d", time.Now().UnixNano()),
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-Id", "benchmark")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&successCount, 1)
		case http.StatusConflict:
			atomic.AddUint64(&conflictCount, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickAccounts(accounts []domain.Account) (domain.Account, domain.Account) {
	n := len(accounts)
	if workload == "hotspot" && rand.Float32() < 0.90 {
		if rand.Float32() < 0.5 {
			return accounts[0], accounts[1]
		}
		return accounts[1], accounts[0]
	}
	a := rand.Intn(n)
	b := rand.Intn(n)
	for a == b {
		b = rand.Intn(n)
	}
	return accounts[a], accounts[b]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&successCount)
	conflicts := atomic.LoadUint64(&conflictCount)
	errs := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var conflictRate float64
	if total > 0 {
		conflictRate = float64(conflicts) / float64(total) * 100
	}

	results := map[string]interface{}{
		"mode":              mode,
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    tps,
		"success":           ok,
		"conflict_aborts":   conflicts,
		"conflict_rate_pct": conflictRate,
		"errors":            errs,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s_%s.json", mode, workload)
	file, err := os.Create(filename)
	if err != nil {
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
