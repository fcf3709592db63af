// Package dataset loads subscription rows from CSV into aggregate records.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/davidahmann/tally/internal/aggregate"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyDataset  = errors.New("dataset has no header row")
)

var requiredColumns = []string{"plan_tier", "monthly_revenue", "status"}

// Accepted header spellings per field. The first present alias wins.
var columnAliases = map[string][]string{
	"customer_id":         {"customer_id", "id", "account_id"},
	"company":             {"company_name", "company", "account_name"},
	"email":               {"contact_email", "primary_contact_email", "email"},
	"phone":               {"contact_phone", "phone"},
	"plan_tier":           {"plan_tier", "plan", "tier"},
	"monthly_revenue":     {"monthly_revenue", "mrr"},
	"annual_revenue":      {"annual_revenue", "arr"},
	"seats_purchased":     {"seats_purchased"},
	"seats_used":          {"seats_used"},
	"status":              {"status"},
	"auto_renew":          {"auto_renew"},
	"outstanding_balance": {"outstanding_balance"},
	"custom_features":     {"custom_features"},
}

// LoadCSV reads a subscription CSV file.
func LoadCSV(path string) ([]aggregate.RawRecord, error) {
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return records, nil
}

// ReadCSV parses subscription rows. Numeric columns that fail to parse are
// treated as zero, matching how the upstream export is cleaned.
func ReadCSV(r io.Reader) ([]aggregate.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, err
	}

	idx := indexColumns(header)
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var out []aggregate.RawRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(field string) string {
			i, ok := idx[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		out = append(out, aggregate.RawRecord{
			CustomerID:         get("customer_id"),
			Company:            get("company"),
			ContactEmail:       get("email"),
			ContactPhone:       get("phone"),
			PlanTier:           get("plan_tier"),
			MonthlyRevenue:     parseCents(get("monthly_revenue")),
			AnnualRevenue:      parseCents(get("annual_revenue")),
			SeatsPurchased:     parseCount(get("seats_purchased")),
			SeatsUsed:          parseCount(get("seats_used")),
			OutstandingBalance: parseCents(get("outstanding_balance")),
			Status:             get("status"),
			AutoRenew:          parseBool(get("auto_renew")),
			CustomFeatures:     splitFeatures(get("custom_features")),
		})
	}
	return out, nil
}

func indexColumns(header []string) map[string]int {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idx := make(map[string]int, len(columnAliases))
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := positions[alias]; ok {
				idx[field] = i
				break
			}
		}
	}
	return idx
}

func parseCents(s string) aggregate.Cents {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return aggregate.Cents(math.Round(v * 100))
}

func parseCount(s string) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(v)
}

func parseBool(s string) bool {
	switch strings.ToUpper(s) {
	case "TRUE", "T", "1":
		return true
	default:
		return false
	}
}

func splitFeatures(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
