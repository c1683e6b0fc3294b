// Package pipeline orchestrates the full tax run: duplicate resolution,
// classification, lot matching, gain evaluation, recovery fallbacks, event
// emission and report generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crypto-tax-core/internal/classify"
	"crypto-tax-core/internal/domain"
	"crypto-tax-core/internal/gains"
	"crypto-tax-core/internal/idhash"
	"crypto-tax-core/internal/jurisdiction"
	"crypto-tax-core/internal/ledger"
	"crypto-tax-core/internal/observability"
	"crypto-tax-core/internal/recovery"
	"crypto-tax-core/internal/reporting"
	"crypto-tax-core/internal/storage"
)

// Runner wires the stages together for one jurisdiction and cost-basis
// method. Transactions are processed in a single chronological pass: swaps
// touch two assets (dispose one leg, acquire the other), so a global order
// is what keeps every asset's lot timeline consistent.
type Runner struct {
	jurisdiction *domain.TaxJurisdiction
	classifier   *classify.Classifier
	calculator   *gains.Calculator
	recoverer    *recovery.Recoverer
	generator    *reporting.Generator
	ledger       *ledger.Ledger
	eventStore   storage.TaxableEventStore
	personalUse  map[string]bool
	failFast     bool
	clock        func() time.Time
}

// Result is the outcome of one pipeline run.
type Result struct {
	Report *reporting.TaxReport
	Events []*domain.TaxableEvent

	// Duplicates records every duplicate resolution applied before
	// processing.
	Duplicates []recovery.DuplicateResolution

	// Warnings lists non-fatal issues: skipped transactions, ambiguous
	// duplicates, recovered figures.
	Warnings []string

	// SkippedIDs lists transactions dropped because recovery was exhausted.
	// Always empty in fail-fast mode.
	SkippedIDs []string
}

// NewRunner creates a pipeline for the given jurisdiction and method.
func NewRunner(j *domain.TaxJurisdiction, method domain.CostBasisMethod) (*Runner, error) {
	if err := jurisdiction.Validate(j); err != nil {
		return nil, err
	}
	if !j.MethodAllowed(method) {
		return nil, fmt.Errorf("jurisdiction %s does not permit cost basis method %s", j.Code, method)
	}
	classifier, err := classify.NewClassifier(j)
	if err != nil {
		return nil, err
	}
	calculator, err := gains.NewCalculator(j)
	if err != nil {
		return nil, err
	}
	led, err := ledger.New(method)
	if err != nil {
		return nil, err
	}
	return &Runner{
		jurisdiction: j,
		classifier:   classifier,
		calculator:   calculator,
		recoverer:    recovery.NewRecoverer(),
		generator:    reporting.NewGenerator(nil),
		ledger:       led,
		personalUse:  make(map[string]bool),
		clock:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithObjective sets the Specific Identification lot-selection objective.
func (r *Runner) WithObjective(o ledger.SelectionObjective) *Runner {
	r.ledger = r.ledger.WithObjective(o)
	return r
}

// WithProfile attaches investor context for business-trading rules.
func (r *Runner) WithProfile(p *domain.InvestorProfile) *Runner {
	r.classifier = r.classifier.WithProfile(p)
	return r
}

// WithRecoverer replaces the default recoverer, e.g. to attach a price
// source or enable zero fallbacks.
func (r *Runner) WithRecoverer(rec *recovery.Recoverer) *Runner {
	r.recoverer = rec
	return r
}

// WithEventStore persists emitted events after a successful run.
func (r *Runner) WithEventStore(store storage.TaxableEventStore) *Runner {
	r.eventStore = store
	return r
}

// WithPersonalUseAssets flags assets as held for personal consumption.
func (r *Runner) WithPersonalUseAssets(assets ...string) *Runner {
	for _, a := range assets {
		r.personalUse[domain.NormalizeAsset(a)] = true
	}
	return r
}

// WithFailFast makes exhausted recovery abort the run instead of skipping
// the transaction with a warning.
func (r *Runner) WithFailFast() *Runner {
	r.failFast = true
	return r
}

// WithClock sets a custom clock function for deterministic output.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	r.generator = r.generator.WithClock(clock)
	return r
}

// Ledger exposes the lot state, e.g. for snapshot export after a run.
func (r *Runner) Ledger() *ledger.Ledger {
	return r.ledger
}

// Run processes the transactions and builds the report for one tax year.
// Structurally broken transactions always abort; exhausted recovery aborts
// only in fail-fast mode. The ledger accumulates across calls, so prior
// years can be replayed before the reporting year.
func (r *Runner) Run(ctx context.Context, taxYearLabel string, txs []*domain.Transaction) (*Result, error) {
	started := r.clock()

	if _, err := jurisdiction.ParseTaxYear(taxYearLabel); err != nil {
		return nil, err
	}

	deduped, duplicates := r.recoverer.ResolveDuplicates(txs)
	result := &Result{Duplicates: duplicates}
	for _, d := range duplicates {
		observability.RecordDuplicateResolution(string(d.Action))
		if d.Warning != "" {
			result.Warnings = append(result.Warnings, d.Warning)
		}
	}

	ordered := make([]*domain.Transaction, len(deduped))
	copy(ordered, deduped)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Timestamp != ordered[j].Timestamp {
			return ordered[i].Timestamp < ordered[j].Timestamp
		}
		return ordered[i].ID < ordered[j].ID
	})

	// prior acquisitions per asset feed cost-basis recovery when the
	// ledger cannot cover a disposal
	prior := make(map[string][]*domain.Transaction)

	for _, tx := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		treatment, err := r.classifier.ClassifyWithContext(tx, classify.Context{
			PersonalUseAsset: r.personalUse[domain.NormalizeAsset(tx.PrimaryAsset())],
		})
		if err != nil {
			observability.DefaultMetrics.ClassificationErrors.Inc()
			observability.RecordPipelineRun(r.jurisdiction.Code, "error", time.Since(started).Seconds())
			return nil, fmt.Errorf("classify transaction %s: %w", tx.ID, err)
		}
		observability.RecordClassification(string(treatment.EventType))

		var event *domain.TaxableEvent
		switch treatment.EventType {
		case domain.EventAcquisition:
			err = r.acquire(tx, prior)
		case domain.EventDisposal:
			event, err = r.dispose(tx, treatment, prior, result)
		case domain.EventIncome:
			event, err = r.receiveIncome(tx, treatment, prior, result)
		case domain.EventDeductible:
			event = r.deduct(tx, treatment)
		default:
			// NON_TAXABLE and anything the classifier degraded to it
		}
		if err != nil {
			observability.RecordPipelineRun(r.jurisdiction.Code, "error", time.Since(started).Seconds())
			return nil, err
		}
		if event != nil {
			result.Events = append(result.Events, event)
			observability.RecordEventEmitted(string(event.EventType))
		}
	}

	if r.eventStore != nil && len(result.Events) > 0 {
		if err := r.eventStore.InsertBulk(ctx, result.Events); err != nil {
			observability.RecordPipelineRun(r.jurisdiction.Code, "error", time.Since(started).Seconds())
			return nil, fmt.Errorf("persist taxable events: %w", err)
		}
	}

	report, err := r.generator.Build(r.jurisdiction, taxYearLabel, result.Events)
	if err != nil {
		observability.RecordPipelineRun(r.jurisdiction.Code, "error", time.Since(started).Seconds())
		return nil, err
	}
	result.Report = report

	sort.Strings(result.Warnings)
	observability.RecordReportGenerated()
	observability.RecordPipelineRun(r.jurisdiction.Code, "ok", time.Since(started).Seconds())
	return result, nil
}

// acquire records the acquired leg as a new lot and remembers it for
// cost-basis recovery.
func (r *Runner) acquire(tx *domain.Transaction, prior map[string][]*domain.Transaction) error {
	leg := acquiredLeg(tx)
	if leg == nil {
		return nil
	}
	if err := r.ledger.AddAcquisition(leg); err != nil {
		return fmt.Errorf("record acquisition %s: %w", tx.ID, err)
	}
	asset := domain.NormalizeAsset(leg.PrimaryAsset())
	prior[asset] = append(prior[asset], leg)
	return nil
}

// dispose resolves the disposal's cost basis and evaluates the gain.
// Returns a nil event when the transaction is skipped with a warning.
func (r *Runner) dispose(
	tx *domain.Transaction,
	treatment *domain.TaxTreatment,
	prior map[string][]*domain.Transaction,
	result *Result,
) (*domain.TaxableEvent, error) {
	asset := domain.NormalizeAsset(tx.PrimaryAsset())
	confidence := 1.0
	notes := []string{treatment.TreatmentReason}

	proceeds := tx.FiatValue
	if proceeds == 0 {
		res, err := r.recoverer.RecoverPrice(tx)
		if err != nil {
			observability.RecordRecovery("price", "exhausted")
			return nil, r.skip(tx, result, err)
		}
		observability.RecordRecovery("price", "ok")
		proceeds = res.Value * tx.PrimaryAmount()
		confidence = minConfidence(confidence, res.Confidence)
		notes = append(notes, res.Reason)
	}

	basis, err := r.ledger.CalculateCostBasis(tx, nil)
	switch {
	case errors.Is(err, ledger.ErrInsufficientLots):
		observability.RecordInsufficientLots()
		res, rerr := r.recoverer.RecoverCostBasis(tx, prior[asset])
		if rerr != nil {
			observability.RecordRecovery("cost_basis", "exhausted")
			return nil, r.skip(tx, result, rerr)
		}
		observability.RecordRecovery("cost_basis", "ok")
		basis = &domain.CostBasis{
			Method:           r.ledger.Method(),
			AcquisitionPrice: res.Value,
			TotalCost:        res.Value * tx.PrimaryAmount(),
		}
		confidence = minConfidence(confidence, res.Confidence)
		notes = append(notes, res.Reason)
	case err != nil:
		return nil, fmt.Errorf("cost basis for disposal %s: %w", tx.ID, err)
	default:
		observability.RecordDisposalMatched()
	}

	event := r.newEvent(tx, domain.EventDisposal, asset)
	event.Classification = treatment.Classification
	event.Confidence = confidence

	if treatment.Classification == domain.ClassBusinessIncome {
		// Trading stock: the full gain is assessable, no discount or
		// personal-use relief.
		event.Proceeds = proceeds
		event.CostBasis = basis.TotalCost
		event.GrossGain = proceeds - basis.TotalCost
		event.TaxableGain = event.GrossGain
	} else {
		res, err := r.calculator.Evaluate(gains.Input{
			Disposal:           tx,
			CostBasis:          basis,
			Proceeds:           proceeds,
			IsPersonalUseAsset: r.personalUse[asset],
		})
		if err != nil {
			return nil, fmt.Errorf("evaluate disposal %s: %w", tx.ID, err)
		}
		gt := r.calculator.Treatment(res)
		event.Classification = gt.Classification
		event.Proceeds = res.Proceeds
		event.CostBasis = res.CostBasis
		event.GrossGain = res.GrossGain
		event.TaxableGain = res.TaxableGain
		event.DiscountApplied = res.DiscountApplied
		event.PersonalUse = res.PersonalUseExempt
		notes[0] = gt.TreatmentReason
	}
	event.Notes = strings.Join(notes, "; ")

	// A swap's incoming leg enters the ledger at the disposal's value.
	if tx.ToAsset != "" && tx.ToAmount > 0 && domain.NormalizeAsset(tx.ToAsset) != asset {
		leg := &domain.Transaction{
			ID:         tx.ID,
			Type:       tx.Type,
			Timestamp:  tx.Timestamp,
			Source:     tx.Source,
			Side:       tx.Side,
			BaseAsset:  tx.ToAsset,
			BaseAmount: tx.ToAmount,
			FiatValue:  proceeds,
		}
		if err := r.ledger.AddAcquisition(leg); err != nil {
			return nil, fmt.Errorf("record swap leg %s: %w", tx.ID, err)
		}
		toAsset := domain.NormalizeAsset(tx.ToAsset)
		prior[toAsset] = append(prior[toAsset], leg)
	}
	return event, nil
}

// receiveIncome emits an income event and enters the received units into the
// ledger at their income value.
func (r *Runner) receiveIncome(
	tx *domain.Transaction,
	treatment *domain.TaxTreatment,
	prior map[string][]*domain.Transaction,
	result *Result,
) (*domain.TaxableEvent, error) {
	asset := domain.NormalizeAsset(tx.PrimaryAsset())
	confidence := 1.0
	notes := []string{treatment.TreatmentReason}

	amount := tx.FiatValue
	if amount == 0 {
		res, err := r.recoverer.RecoverPrice(tx)
		if err != nil {
			observability.RecordRecovery("price", "exhausted")
			return nil, r.skip(tx, result, err)
		}
		observability.RecordRecovery("price", "ok")
		amount = res.Value * tx.PrimaryAmount()
		confidence = minConfidence(confidence, res.Confidence)
		notes = append(notes, res.Reason)
	}

	event := r.newEvent(tx, domain.EventIncome, asset)
	event.Classification = treatment.Classification
	event.IncomeCategory = classify.IncomeCategoryFor(tx.Type)
	event.IncomeAmount = amount
	event.Confidence = confidence
	event.Notes = strings.Join(notes, "; ")

	if tx.PrimaryAmount() > 0 {
		priced := *tx
		priced.FiatValue = amount
		if err := r.ledger.AddAcquisition(&priced); err != nil {
			return nil, fmt.Errorf("record income lot %s: %w", tx.ID, err)
		}
		prior[asset] = append(prior[asset], &priced)
	}
	return event, nil
}

// deduct emits a deductible-fee event.
func (r *Runner) deduct(tx *domain.Transaction, treatment *domain.TaxTreatment) *domain.TaxableEvent {
	fee := tx.FiatValue
	if fee == 0 && tx.Fee != nil {
		if tx.Fee.FiatValue > 0 {
			fee = tx.Fee.FiatValue
		} else {
			fee = tx.Fee.Amount
		}
	}

	event := r.newEvent(tx, domain.EventDeductible, domain.NormalizeAsset(tx.PrimaryAsset()))
	event.Classification = treatment.Classification
	event.DeductibleFee = fee
	event.Confidence = 1.0
	event.Notes = treatment.TreatmentReason
	return event
}

// newEvent builds the common fields shared by every emitted event.
func (r *Runner) newEvent(tx *domain.Transaction, eventType domain.TaxEventType, asset string) *domain.TaxableEvent {
	return &domain.TaxableEvent{
		EventID:       idhash.ComputeEventID(tx.ID, eventType, asset, tx.Timestamp),
		TransactionID: tx.ID,
		TaxYear:       jurisdiction.TaxYearOf(r.jurisdiction, tx.Timestamp).Label,
		Jurisdiction:  r.jurisdiction.Code,
		Asset:         asset,
		Exchange:      tx.Source.Exchange,
		Timestamp:     tx.Timestamp,
		EventType:     eventType,
	}
}

// skip records an exhausted-recovery transaction, or aborts in fail-fast
// mode.
func (r *Runner) skip(tx *domain.Transaction, result *Result, cause error) error {
	if r.failFast {
		return fmt.Errorf("transaction %s: %w", tx.ID, cause)
	}
	result.Warnings = append(result.Warnings, fmt.Sprintf("transaction %s skipped: %v", tx.ID, cause))
	result.SkippedIDs = append(result.SkippedIDs, tx.ID)
	return nil
}

// acquiredLeg returns the transaction leg that enters the ledger for an
// acquisition treatment: the incoming leg for swap-shaped transactions, the
// transaction itself otherwise.
func acquiredLeg(tx *domain.Transaction) *domain.Transaction {
	if tx.BaseAsset != "" || tx.ToAsset == "" || tx.ToAmount <= 0 {
		if tx.PrimaryAmount() <= 0 {
			return nil
		}
		return tx
	}
	return &domain.Transaction{
		ID:         tx.ID,
		Type:       tx.Type,
		Timestamp:  tx.Timestamp,
		Source:     tx.Source,
		Side:       tx.Side,
		BaseAsset:  tx.ToAsset,
		BaseAmount: tx.ToAmount,
		FiatValue:  tx.FiatValue,
	}
}

func minConfidence(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
