package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/jurisdiction"
	"crypto-tax-core/internal/pipeline"
	"crypto-tax-core/internal/recovery"
	"crypto-tax-core/internal/storage"
	chstore "crypto-tax-core/internal/storage/clickhouse"
	"crypto-tax-core/internal/storage/memory"
	"crypto-tax-core/internal/storage/migrations"
	pgstore "crypto-tax-core/internal/storage/postgres"
)

func main() {
	// Parse flags
	jurisdictionCode := flag.String("jurisdiction", "AU", "Jurisdiction code for the builtin rule table")
	rulesPath := flag.String("rules", "", "Path to a TOML rule table overriding the builtin jurisdiction")
	taxYear := flag.String("tax-year", "", "Tax year to report, e.g. 2024-2025")
	method := flag.String("method", "FIFO", "Cost basis method: FIFO or SPECIFIC_ID")
	inputPath := flag.String("input", "", "Path to a JSON transaction file")
	useFixtures := flag.Bool("use-fixtures", false, "Use built-in demo transactions instead of --input")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for event and snapshot persistence")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the event archive")
	personalUse := flag.String("personal-use", "", "Comma-separated assets held for personal use")
	tradesPerYear := flag.Int("trades-per-year", 0, "Investor trade frequency for business-trading rules")
	allowZeroBasis := flag.Bool("allow-zero-basis", false, "Fall back to a zero cost basis when recovery is exhausted")
	failFast := flag.Bool("fail-fast", false, "Abort on the first unrecoverable transaction")
	ledgerID := flag.String("ledger-id", "default", "Ledger identifier for persisted snapshots")
	flag.Parse()

	ctx := context.Background()

	if *taxYear == "" {
		fmt.Fprintln(os.Stderr, "Error: --tax-year is required, e.g. --tax-year 2024-2025")
		os.Exit(1)
	}
	if !*useFixtures && *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --input is required when not using fixtures")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo data instead")
		os.Exit(1)
	}

	j, err := loadJurisdiction(*jurisdictionCode, *rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading jurisdiction: %v\n", err)
		os.Exit(1)
	}

	txs, err := loadTransactions(*inputPath, *useFixtures)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading transactions: %v\n", err)
		os.Exit(1)
	}

	eventStore, snapshotStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to storage: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	runner, err := pipeline.NewRunner(j, domain.CostBasisMethod(strings.ToUpper(*method)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building pipeline: %v\n", err)
		os.Exit(1)
	}
	runner = runner.WithEventStore(eventStore)
	if *personalUse != "" {
		runner = runner.WithPersonalUseAssets(strings.Split(*personalUse, ",")...)
	}
	if *tradesPerYear > 0 {
		runner = runner.WithProfile(&domain.InvestorProfile{
			Type:          domain.InvestorPersonal,
			TradesPerYear: *tradesPerYear,
		})
	}
	if *allowZeroBasis {
		runner = runner.WithRecoverer(recovery.NewRecoverer().WithZeroBasisFallback())
	}
	if *failFast {
		runner = runner.WithFailFast()
	}

	result, err := runner.Run(ctx, *taxYear, txs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running pipeline: %v\n", err)
		os.Exit(1)
	}

	if snapshotStore != nil {
		if err := saveSnapshot(ctx, snapshotStore, runner, *ledgerID); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving ledger snapshot: %v\n", err)
			os.Exit(1)
		}
	}

	printReport(result)
}

// loadJurisdiction resolves the rule table: a TOML file when given, the
// builtin table otherwise.
func loadJurisdiction(code, rulesPath string) (*domain.TaxJurisdiction, error) {
	if rulesPath != "" {
		data, err := os.ReadFile(rulesPath)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		return jurisdiction.LoadTOML(data)
	}
	return jurisdiction.Lookup(code)
}

func loadTransactions(inputPath string, useFixtures bool) ([]*domain.Transaction, error) {
	if useFixtures {
		return pipeline.DemoTransactions(), nil
	}
	return pipeline.LoadTransactionsJSON(inputPath)
}

// createStores wires event persistence: ClickHouse when its DSN is given,
// else PostgreSQL (which also persists ledger snapshots), else memory.
// Migrations run automatically for database modes.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string) (
	storage.TaxableEventStore,
	storage.LedgerSnapshotStore,
	func(),
	error,
) {
	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return chstore.NewTaxableEventStore(conn), nil, func() { conn.Close() }, nil
	}

	if postgresDSN != "" {
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

	return memory.NewTaxableEventStore(), nil, func() {}, nil
}

func saveSnapshot(ctx context.Context, store storage.LedgerSnapshotStore, runner *pipeline.Runner, ledgerID string) error {
	state, err := runner.Ledger().ExportState()
	if err != nil {
		return err
	}
	return store.Save(ctx, &domain.LedgerSnapshot{
		LedgerID:  ledgerID,
		Method:    runner.Ledger().Method(),
		CreatedAt: time.Now().UTC().UnixMilli(),
		State:     state,
	})
}

func printReport(result *pipeline.Result) {
	r := result.Report
	fmt.Printf("Tax report %s (%s %s)\n", r.ReportID, r.Jurisdiction, r.TaxYear)
	fmt.Printf("  Capital gains:     %12.2f\n", r.TotalCapitalGains)
	fmt.Printf("  Discounted gains:  %12.2f\n", r.TotalDiscountedGains)
	fmt.Printf("  Losses:            %12.2f\n", r.TotalLosses)
	fmt.Printf("  Net capital gain:  %12.2f\n", r.NetCapitalGain)
	fmt.Printf("  Ordinary income:   %12.2f\n", r.TotalIncome)
	fmt.Printf("  Deductible fees:   %12.2f\n", r.DeductibleFees)
	fmt.Printf("  Exempt disposals:  %d\n", r.ExemptDisposals)
	fmt.Printf("  Events:            %d (%d low confidence)\n", r.EventCount, r.LowConfidenceCount)

	if len(r.ByAsset) > 0 {
		fmt.Println("  By asset:")
		assets := make([]string, 0, len(r.ByAsset))
		for asset := range r.ByAsset {
			assets = append(assets, asset)
		}
		sort.Strings(assets)
		for _, asset := range assets {
			b := r.ByAsset[asset]
			fmt.Printf("    %-8s gains %10.2f  losses %10.2f  income %10.2f  events %d\n",
				asset, b.CapitalGains, b.Losses, b.Income, b.Events)
		}
	}

	printWarnings(result.Warnings)
	if len(result.SkippedIDs) > 0 {
		fmt.Printf("  Skipped transactions: %s\n", strings.Join(result.SkippedIDs, ", "))
	}
}

func printWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Println("  Warnings:")
	for _, w := range warnings {
		fmt.Printf("    - %s\n", w)
	}
}
