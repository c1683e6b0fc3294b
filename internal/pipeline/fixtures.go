package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"crypto-tax-core/internal/domain"
)

// DemoTransactions returns a small self-consistent transaction history for
// demonstration runs: spot trades, a swap, staking income, a standalone fee
// and one duplicate record. All timestamps fall in the Australian 2024-2025
// tax year or establish lots before it.
func DemoTransactions() []*domain.Transaction {
	return []*domain.Transaction{
		{
			ID:          "demo-buy-btc",
			Type:        domain.TxSpotTrade,
			Timestamp:   demoMs(2023, time.May, 10),
			Source:      domain.Source{Exchange: "binance"},
			Side:        domain.SideBuy,
			BaseAsset:   "BTC",
			BaseAmount:  0.5,
			QuoteAsset:  "AUD",
			QuoteAmount: 20000,
			FiatValue:   20000,
		},
		{
			ID:          "demo-buy-eth",
			Type:        domain.TxSpotTrade,
			Timestamp:   demoMs(2024, time.August, 5),
			Source:      domain.Source{Exchange: "kraken"},
			Side:        domain.SideBuy,
			BaseAsset:   "ETH",
			BaseAmount:  4,
			QuoteAsset:  "AUD",
			QuoteAmount: 16000,
			FiatValue:   16000,
		},
		{
			ID:          "demo-sell-btc",
			Type:        domain.TxSpotTrade,
			Timestamp:   demoMs(2024, time.November, 20),
			Source:      domain.Source{Exchange: "binance"},
			Side:        domain.SideSell,
			BaseAsset:   "BTC",
			BaseAmount:  0.5,
			QuoteAsset:  "AUD",
			QuoteAmount: 48000,
			FiatValue:   48000,
			Fee:         &domain.Fee{Asset: "AUD", Amount: 48, FiatValue: 48},
		},
		{
			// Same record reported twice by the exchange export.
			ID:          "demo-sell-btc-dup",
			Type:        domain.TxSpotTrade,
			Timestamp:   demoMs(2024, time.November, 20),
			Source:      domain.Source{Exchange: "binance"},
			Side:        domain.SideSell,
			BaseAsset:   "BTC",
			BaseAmount:  0.5,
			QuoteAsset:  "AUD",
			QuoteAmount: 48000,
			FiatValue:   48000,
		},
		{
			ID:         "demo-swap-eth-sol",
			Type:       domain.TxSwap,
			Timestamp:  demoMs(2025, time.January, 15),
			Source:     domain.Source{Exchange: "uniswap", Protocol: "uniswap-v3"},
			FromAsset:  "ETH",
			FromAmount: 1,
			ToAsset:    "SOL",
			ToAmount:   20,
			FiatValue:  4400,
		},
		{
			ID:        "demo-stake-sol",
			Type:      domain.TxStakingReward,
			Timestamp: demoMs(2025, time.March, 1),
			Source:    domain.Source{Exchange: "marinade", Protocol: "marinade"},
			ToAsset:   "SOL",
			ToAmount:  0.8,
			FiatValue: 180,
		},
		{
			ID:        "demo-network-fee",
			Type:      domain.TxFee,
			Timestamp: demoMs(2025, time.April, 2),
			Source:    domain.Source{Exchange: "kraken"},
			Fee:       &domain.Fee{Asset: "AUD", Amount: 25, FiatValue: 25},
		},
		{
			ID:         "demo-sell-sol",
			Type:       domain.TxSpotTrade,
			Timestamp:  demoMs(2025, time.May, 30),
			Source:     domain.Source{Exchange: "kraken"},
			Side:       domain.SideSell,
			BaseAsset:  "SOL",
			BaseAmount: 10,
			QuoteAsset: "AUD",
			FiatValue:  2600,
		},
	}
}

// LoadTransactionsJSON reads a transaction batch from a JSON file: a single
// array of transaction objects.
func LoadTransactionsJSON(path string) ([]*domain.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transactions file: %w", err)
	}
	var txs []*domain.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("parse transactions file %s: %w", path, err)
	}
	return txs, nil
}

func demoMs(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}
