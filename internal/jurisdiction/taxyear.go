package jurisdiction

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"crypto-tax-core/internal/domain"
)

// TaxYear is a validated split tax year, e.g. "2024-2025".
type TaxYear struct {
	Label     string
	StartYear int
	EndYear   int
}

// ParseTaxYear validates the "YYYY-YYYY" format. The second year must
// immediately follow the first.
func ParseTaxYear(s string) (TaxYear, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return TaxYear{}, fmt.Errorf("tax year %q: want format YYYY-YYYY", s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return TaxYear{}, fmt.Errorf("tax year %q: invalid start year", s)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return TaxYear{}, fmt.Errorf("tax year %q: invalid end year", s)
	}
	if end != start+1 {
		return TaxYear{}, fmt.Errorf("tax year %q: years must be consecutive", s)
	}
	return TaxYear{Label: start4(start) + "-" + start4(end), StartYear: start, EndYear: end}, nil
}

func start4(y int) string {
	return fmt.Sprintf("%04d", y)
}

// Window returns the [start, end) boundaries of the tax year under the given
// jurisdiction, as Unix milliseconds UTC. An Australian 2024-2025 year runs
// from 2024-07-01T00:00:00Z to 2025-07-01T00:00:00Z.
func (ty TaxYear) Window(j *domain.TaxJurisdiction) (startMs, endMs int64) {
	start := time.Date(ty.StartYear, time.Month(j.TaxYearStartMonth), j.TaxYearStartDay, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return start.UnixMilli(), end.UnixMilli()
}

// Contains reports whether a timestamp (ms UTC) falls inside the tax year.
func (ty TaxYear) Contains(j *domain.TaxJurisdiction, timestampMs int64) bool {
	start, end := ty.Window(j)
	return timestampMs >= start && timestampMs < end
}

// TaxYearOf returns the tax year containing the timestamp.
func TaxYearOf(j *domain.TaxJurisdiction, timestampMs int64) TaxYear {
	t := time.UnixMilli(timestampMs).UTC()
	boundary := time.Date(t.Year(), time.Month(j.TaxYearStartMonth), j.TaxYearStartDay, 0, 0, 0, 0, time.UTC)
	startYear := t.Year()
	if t.Before(boundary) {
		startYear--
	}
	return TaxYear{
		Label:     start4(startYear) + "-" + start4(startYear+1),
		StartYear: startYear,
		EndYear:   startYear + 1,
	}
}
