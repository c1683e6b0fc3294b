package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"crypto-tax-core/internal/domain"
)

// ComputeEventID computes a deterministic taxable-event ID using SHA256.
// Formula: SHA256(transaction_id|event_type|asset|timestamp)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	transactionID string,
	eventType domain.TaxEventType,
	asset string,
	timestamp int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		transactionID,
		eventType,
		asset,
		timestamp,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeDuplicateKey computes the identity key used for duplicate
// detection: transactions with the same type, side, timestamp, asset,
// amounts and source are considered the same record. The side and quote leg
// are part of the identity: a buy and a sell of the same amount at the same
// instant are two real trades, not one record.
// Formula: SHA256(type|side|timestamp|asset|amount|quote_asset|quote_amount|exchange)
func ComputeDuplicateKey(tx *domain.Transaction) string {
	data := fmt.Sprintf("%s|%s|%d|%s|%.8f|%s|%.8f|%s",
		tx.Type,
		tx.Side,
		tx.Timestamp,
		domain.NormalizeAsset(tx.PrimaryAsset()),
		tx.PrimaryAmount(),
		domain.NormalizeAsset(tx.QuoteAsset),
		tx.QuoteAmount,
		tx.Source.Exchange,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
