package domain

import (
	"fmt"
	"strings"
)

// TransactionType discriminates normalized economic events.
type TransactionType string

// Transaction type constants
const (
	TxSpotTrade       TransactionType = "SPOT_TRADE"
	TxTransfer        TransactionType = "TRANSFER"
	TxFee             TransactionType = "FEE"
	TxStakingReward   TransactionType = "STAKING_REWARD"
	TxMiningReward    TransactionType = "MINING_REWARD"
	TxInterest        TransactionType = "INTEREST"
	TxAirdrop         TransactionType = "AIRDROP"
	TxLaunchpool      TransactionType = "LAUNCHPOOL"
	TxDistribution    TransactionType = "DISTRIBUTION"
	TxSwap            TransactionType = "SWAP"
	TxLiquidityAdd    TransactionType = "LIQUIDITY_ADD"
	TxLiquidityRemove TransactionType = "LIQUIDITY_REMOVE"
	TxLending         TransactionType = "LENDING"
	TxLoan            TransactionType = "LOAN"
	TxMarginTrade     TransactionType = "MARGIN_TRADE"
	TxFuturesTrade    TransactionType = "FUTURES_TRADE"
)

// AllTransactionTypes lists every supported type. Classification performs an
// exhaustive switch over this set; adding a type without a classifier branch
// fails the exhaustiveness test in internal/classify.
var AllTransactionTypes = []TransactionType{
	TxSpotTrade, TxTransfer, TxFee,
	TxStakingReward, TxMiningReward, TxInterest, TxAirdrop, TxLaunchpool, TxDistribution,
	TxSwap, TxLiquidityAdd, TxLiquidityRemove, TxLending, TxLoan,
	TxMarginTrade, TxFuturesTrade,
}

// TradeSide encodes direction; amounts are always nonnegative magnitudes.
type TradeSide string

// Trade side constants
const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Source identifies where a transaction originated.
type Source struct {
	Exchange         string // exchange or protocol name
	Protocol         string // DeFi protocol, empty for CEX events
	JurisdictionHint string // ISO country code suggested by the origin, may be empty
}

// Fee is an absolute fee charged against a transaction.
type Fee struct {
	Asset     string
	Amount    float64
	FiatValue float64 // fee valued in the reporting fiat currency
}

// Transaction is a normalized economic event handed to the core by an
// external parsing layer. Timestamps are Unix milliseconds UTC.
type Transaction struct {
	ID        string
	Type      TransactionType
	Timestamp int64
	Source    Source

	// Trade legs (SPOT_TRADE, MARGIN_TRADE, FUTURES_TRADE)
	Side        TradeSide
	BaseAsset   string
	BaseAmount  float64
	QuoteAsset  string
	QuoteAmount float64

	// Swap / transfer legs
	FromAsset  string
	FromAmount float64
	ToAsset    string
	ToAmount   float64

	// FiatValue is the fiat valuation of the event at transaction time,
	// 0 when the upstream layer could not price it.
	FiatValue float64

	Fee *Fee

	// TaxEvents is populated by downstream stages; everything above is
	// immutable once the transaction enters the core.
	TaxEvents []*TaxableEvent
}

// PrimaryAsset returns the asset whose balance the transaction moves.
func (t *Transaction) PrimaryAsset() string {
	switch {
	case t.BaseAsset != "":
		return t.BaseAsset
	case t.FromAsset != "":
		return t.FromAsset
	case t.ToAsset != "":
		return t.ToAsset
	}
	if t.Fee != nil {
		return t.Fee.Asset
	}
	return ""
}

// PrimaryAmount returns the magnitude moved in PrimaryAsset.
func (t *Transaction) PrimaryAmount() float64 {
	switch {
	case t.BaseAsset != "":
		return t.BaseAmount
	case t.FromAsset != "":
		return t.FromAmount
	case t.ToAsset != "":
		return t.ToAmount
	}
	if t.Fee != nil {
		return t.Fee.Amount
	}
	return 0
}

// UnitPrice returns the quote/base price ratio, or 0 when unavailable.
func (t *Transaction) UnitPrice() float64 {
	if t.BaseAmount > 0 && t.QuoteAmount > 0 {
		return t.QuoteAmount / t.BaseAmount
	}
	return 0
}

// Validate rejects structurally broken transactions before classification.
// Returns an error wrapping ErrMalformedTransaction.
func (t *Transaction) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil transaction", ErrMalformedTransaction)
	}
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedTransaction)
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("%w: transaction %s has no timestamp", ErrMalformedTransaction, t.ID)
	}
	if t.Type == "" {
		return fmt.Errorf("%w: transaction %s has no type", ErrMalformedTransaction, t.ID)
	}
	switch t.Type {
	case TxSpotTrade, TxMarginTrade, TxFuturesTrade:
		// Amounts are unsigned magnitudes, so the side is the only record
		// of trade direction.
		if t.Side != SideBuy && t.Side != SideSell {
			return fmt.Errorf("%w: trade %s has no side", ErrMalformedTransaction, t.ID)
		}
	}
	for _, amt := range []float64{t.BaseAmount, t.QuoteAmount, t.FromAmount, t.ToAmount} {
		if amt < 0 {
			return fmt.Errorf("%w: transaction %s has negative amount", ErrMalformedTransaction, t.ID)
		}
	}
	if t.Fee != nil && t.Fee.Amount < 0 {
		return fmt.Errorf("%w: transaction %s has negative fee", ErrMalformedTransaction, t.ID)
	}
	if t.PrimaryAsset() == "" {
		return fmt.Errorf("%w: transaction %s has no asset", ErrMalformedTransaction, t.ID)
	}
	return nil
}

// NormalizeAsset produces the canonical asset key used by ledgers and
// reports. Keys are case-insensitive and whitespace-trimmed.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
