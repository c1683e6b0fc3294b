// Package main provides the tax reporting service: transaction batches come
// in over HTTP, taxable events persist to storage, and reports are generated
// on demand for any stored tax year.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/jurisdiction"
	"crypto-tax-core/internal/observability"
	"crypto-tax-core/internal/pipeline"
	"crypto-tax-core/internal/recovery"
	"crypto-tax-core/internal/reporting"
	"crypto-tax-core/internal/storage"
	chstore "crypto-tax-core/internal/storage/clickhouse"
	"crypto-tax-core/internal/storage/memory"
	"crypto-tax-core/internal/storage/migrations"
	pgstore "crypto-tax-core/internal/storage/postgres"
)

// Server holds the service state shared across requests.
type Server struct {
	eventStore    storage.TaxableEventStore
	snapshotStore storage.LedgerSnapshotStore // nil outside postgres mode
	logger        *log.Logger

	mu         sync.Mutex
	started    time.Time
	lastRun    time.Time
	runsTotal  int
	runsFailed int
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of a database")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn or --clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventStore, snapshotStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := &Server{
		eventStore:    eventStore,
		snapshotStore: snapshotStore,
		logger:        logger,
		started:       time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/v1/runs", server.handleRun)
	mux.HandleFunc("/v1/reports", server.handleReport)

	httpServer := &http.Server{Addr: *addr, Handler: mux}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores wires event persistence: ClickHouse archives events when its
// DSN is given, else PostgreSQL (which also keeps ledger snapshots), else
// memory. Migrations run automatically for database modes.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (
	storage.TaxableEventStore,
	storage.LedgerSnapshotStore,
	func(),
	error,
) {
	if useMemory {
		return memory.NewTaxableEventStore(), memory.NewLedgerSnapshotStore(), func() {}, nil
	}

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return chstore.NewTaxableEventStore(conn), nil, func() { conn.Close() }, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return pgstore.NewTaxableEventStore(pool), pgstore.NewLedgerSnapshotStore(pool), pool.Close, nil
}

// RunRequest is the JSON body for POST /v1/runs.
type RunRequest struct {
	Jurisdiction      string                `json:"jurisdiction"`
	TaxYear           string                `json:"tax_year"`
	Method            string                `json:"method"`
	PersonalUseAssets []string              `json:"personal_use_assets,omitempty"`
	TradesPerYear     int                   `json:"trades_per_year,omitempty"`
	AllowZeroBasis    bool                  `json:"allow_zero_basis,omitempty"`
	FailFast          bool                  `json:"fail_fast,omitempty"`
	LedgerID          string                `json:"ledger_id,omitempty"`
	Transactions      []*domain.Transaction `json:"transactions"`
}

// RunResponse is the JSON response for POST /v1/runs.
type RunResponse struct {
	Report     *reporting.TaxReport `json:"report"`
	Warnings   []string             `json:"warnings,omitempty"`
	SkippedIDs []string             `json:"skipped_ids,omitempty"`
	Duplicates int                  `json:"duplicates_resolved"`
	Events     int                  `json:"events_emitted"`
}

// handleRun processes a transaction batch and persists its taxable events.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	j, err := jurisdiction.Lookup(req.Jurisdiction)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	method := domain.CostBasisMethod(strings.ToUpper(req.Method))
	if method == "" {
		method = domain.MethodFIFO
	}

	runner, err := pipeline.NewRunner(j, method)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	runner = runner.WithEventStore(s.eventStore)
	if len(req.PersonalUseAssets) > 0 {
		runner = runner.WithPersonalUseAssets(req.PersonalUseAssets...)
	}
	if req.TradesPerYear > 0 {
		runner = runner.WithProfile(&domain.InvestorProfile{
			Type:          domain.InvestorPersonal,
			TradesPerYear: req.TradesPerYear,
		})
	}
	if req.AllowZeroBasis {
		runner = runner.WithRecoverer(recovery.NewRecoverer().WithZeroBasisFallback())
	}
	if req.FailFast {
		runner = runner.WithFailFast()
	}

	result, err := runner.Run(r.Context(), req.TaxYear, req.Transactions)

	s.mu.Lock()
	s.runsTotal++
	s.lastRun = time.Now()
	if err != nil {
		s.runsFailed++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Printf("Run failed: %v", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if s.snapshotStore != nil && req.LedgerID != "" {
		state, err := runner.Ledger().ExportState()
		if err == nil {
			err = s.snapshotStore.Save(r.Context(), &domain.LedgerSnapshot{
				LedgerID:  req.LedgerID,
				Method:    method,
				CreatedAt: time.Now().UTC().UnixMilli(),
				State:     state,
			})
		}
		if err != nil {
			s.logger.Printf("Snapshot save failed for ledger %s: %v", req.LedgerID, err)
		}
	}

	writeJSON(w, RunResponse{
		Report:     result.Report,
		Warnings:   result.Warnings,
		SkippedIDs: result.SkippedIDs,
		Duplicates: len(result.Duplicates),
		Events:     len(result.Events),
	})
}

// handleReport rebuilds a report from stored events:
// GET /v1/reports?jurisdiction=AU&tax-year=2024-2025
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	j, err := jurisdiction.Lookup(r.URL.Query().Get("jurisdiction"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	taxYear := r.URL.Query().Get("tax-year")

	report, err := reporting.NewGenerator(s.eventStore).Generate(r.Context(), j, taxYear)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, report)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	LastRun    time.Time `json:"last_run,omitempty"`
	RunsTotal  int       `json:"runs_total"`
	RunsFailed int       `json:"runs_failed"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).String(),
		LastRun:    s.lastRun,
		RunsTotal:  s.runsTotal,
		RunsFailed: s.runsFailed,
	}
	s.mu.Unlock()
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
