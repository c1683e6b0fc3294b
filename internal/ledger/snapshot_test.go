package ledger

import (
	"errors"
	"testing"

	"crypto-tax-core/internal/domain"
)

func TestSnapshotRoundTrip(t *testing.T) {
	l, _ := New(domain.MethodFIFO)
	l.AddAcquisition(buy("a1", "BTC", 1.5, 50000, ms(2024, 1, 15)))
	l.AddAcquisition(buy("a2", "BTC", 0.25, 61234.5678, ms(2024, 2, 15)))
	l.AddAcquisition(buy("a3", "ETH", 10, 3000, ms(2024, 3, 1)))

	// Partially consume so the snapshot carries both open and exhausted lots.
	if _, err := l.CalculateCostBasis(sell("d1", "BTC", 1.5, ms(2024, 6, 1)), nil); err != nil {
		t.Fatalf("disposal failed: %v", err)
	}

	data, err := l.ExportState()
	if err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}

	restored, _ := New(domain.MethodFIFO)
	if err := restored.ImportState(data); err != nil {
		t.Fatalf("ImportState failed: %v", err)
	}

	for _, asset := range []string{"BTC", "ETH"} {
		want := l.lots[asset]
		got := restored.lots[asset]
		if len(got) != len(want) {
			t.Fatalf("%s: restored %d lots, want %d", asset, len(got), len(want))
		}
		for i := range want {
			if *got[i] != *want[i] {
				t.Errorf("%s lot %d mismatch: got %+v, want %+v", asset, i, *got[i], *want[i])
			}
		}
	}

	// Round-trip must be exact: a second export is byte-identical.
	again, err := restored.ExportState()
	if err != nil {
		t.Fatalf("second ExportState failed: %v", err)
	}
	if string(again) != string(data) {
		t.Error("snapshot did not round-trip byte-for-byte")
	}
}

func TestImportState_ReplacesExistingState(t *testing.T) {
	source, _ := New(domain.MethodFIFO)
	source.AddAcquisition(buy("a1", "BTC", 1, 50000, ms(2024, 1, 15)))
	data, _ := source.ExportState()

	target, _ := New(domain.MethodFIFO)
	target.AddAcquisition(buy("old", "ETH", 99, 1, ms(2023, 1, 1)))

	if err := target.ImportState(data); err != nil {
		t.Fatalf("ImportState failed: %v", err)
	}
	if got := target.RemainingBalance("ETH"); got != 0 {
		t.Errorf("pre-import state survived: ETH balance %f", got)
	}
	if got := target.RemainingBalance("BTC"); got != 1 {
		t.Errorf("BTC balance = %f, want 1", got)
	}
}

func TestImportState_Corrupt(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"bad version", `{"version":99,"method":"FIFO","assets":{}}`},
		{"bad method", `{"version":1,"method":"LIFO","assets":{}}`},
		{"bad date", `{"version":1,"method":"FIFO","assets":{"BTC":[{"date":"yesterday","amount":1,"unitPrice":1,"remainingAmount":1}]}}`},
		{"negative amount", `{"version":1,"method":"FIFO","assets":{"BTC":[{"date":"2024-01-15T00:00:00Z","amount":-1,"unitPrice":1,"remainingAmount":0}]}}`},
		{"remaining exceeds amount", `{"version":1,"method":"FIFO","assets":{"BTC":[{"date":"2024-01-15T00:00:00Z","amount":1,"unitPrice":1,"remainingAmount":2}]}}`},
		{"unnormalized asset key", `{"version":1,"method":"FIFO","assets":{"btc":[]}}`},
		{"out of order", `{"version":1,"method":"FIFO","assets":{"BTC":[{"date":"2024-02-15T00:00:00Z","amount":1,"unitPrice":1,"remainingAmount":1},{"date":"2024-01-15T00:00:00Z","amount":1,"unitPrice":1,"remainingAmount":1}]}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := New(domain.MethodFIFO)
			l.AddAcquisition(buy("keep", "BTC", 3, 50000, ms(2024, 1, 15)))

			err := l.ImportState([]byte(tc.data))
			if !errors.Is(err, ErrCorruptSnapshot) {
				t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
			}
			// Failed import never partially applies.
			if got := l.RemainingBalance("BTC"); got != 3 {
				t.Errorf("state changed on failed import: balance %f", got)
			}
		})
	}
}

func TestImportState_RestoresMethod(t *testing.T) {
	source, _ := New(domain.MethodSpecificID)
	data, _ := source.ExportState()

	target, _ := New(domain.MethodFIFO)
	if err := target.ImportState(data); err != nil {
		t.Fatalf("ImportState failed: %v", err)
	}
	if target.Method() != domain.MethodSpecificID {
		t.Errorf("Method = %s, want SPECIFIC_ID", target.Method())
	}
}
