package billing

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/shopspring/decimal"
)

// Output column orders. These are the warehouse insert order and the
// workbook column order respectively.
var (
	ImportColumns = []string{"VENDORID", "ENVIRONMENTCODE", "VENDORNAME", "HHAXUNIQUEID", "COMPONENT", "VALUE", "MONTHYEAR"}
	BackupColumns = []string{"VENDORID", "ENVIRONMENTCODE", "VENDORNAME", "HHAXUNIQUEID", "COMPONENT", "VALUE", "Total", "MONTHYEAR"}
)

// Result is the transformer output.
type Result struct {
	Enriched []domain.EnrichedRecord
	Import   []domain.ImportRow
	Backup   []domain.BackupRow

	Unmatched int // usage rows with no account
	// AmbiguousLegacyIDs lists legacy ids that more than one account claims,
	// sorted. Each resolved to the account with the smallest canonical id.
	AmbiguousLegacyIDs []string
}

// Transform left-joins usage to accounts on VendorID = LegacyID and builds
// both projections. Row order follows usage; every usage row appears exactly
// once in each output.
func Transform(usage []domain.UsageRecord, accounts []domain.AccountRecord) Result {
	index, ambiguous := indexAccounts(accounts)

	res := Result{
		Enriched:           make([]domain.EnrichedRecord, 0, len(usage)),
		AmbiguousLegacyIDs: ambiguous,
	}

	for _, u := range usage {
		e := domain.EnrichedRecord{
			UsageRecord:     u,
			EnvironmentCode: domain.EnvironmentCode,
		}
		if acct, ok := index[joinKey(u.VendorID)]; ok {
			e.AccountID = sql.NullString{String: acct.ID, Valid: true}
			e.AccountName = sql.NullString{String: acct.Name, Valid: true}
		} else {
			res.Unmatched++
		}
		res.Enriched = append(res.Enriched, e)
	}

	res.Import = ImportProjection(res.Enriched)
	res.Backup = BackupProjection(res.Enriched)
	return res
}

// indexAccounts maps legacy id to account. When several accounts share a
// legacy id the smallest canonical id wins.
func indexAccounts(accounts []domain.AccountRecord) (map[string]domain.AccountRecord, []string) {
	index := make(map[string]domain.AccountRecord, len(accounts))
	dupes := make(map[string]struct{})

	for _, a := range accounts {
		key := joinKey(a.LegacyID)
		if key == "" {
			continue
		}
		existing, ok := index[key]
		if !ok {
			index[key] = a
			continue
		}
		dupes[key] = struct{}{}
		if a.ID < existing.ID {
			index[key] = a
		}
	}

	ambiguous := make([]string, 0, len(dupes))
	for k := range dupes {
		ambiguous = append(ambiguous, k)
	}
	sort.Strings(ambiguous)
	return index, ambiguous
}

func joinKey(s string) string {
	return strings.TrimSpace(s)
}

// ImportProjection drops the cost columns.
func ImportProjection(rows []domain.EnrichedRecord) []domain.ImportRow {
	out := make([]domain.ImportRow, len(rows))
	for i, r := range rows {
		out[i] = domain.ImportRow{
			VendorID:        r.VendorID,
			EnvironmentCode: r.EnvironmentCode,
			VendorName:      r.AccountName,
			HHAXUniqueID:    r.AccountID,
			Component:       r.Component,
			Value:           r.Quantity,
			MonthYear:       r.MonthYear,
		}
	}
	return out
}

// BackupProjection keeps Total and drops CostPer.
func BackupProjection(rows []domain.EnrichedRecord) []domain.BackupRow {
	out := make([]domain.BackupRow, len(rows))
	for i, r := range rows {
		out[i] = domain.BackupRow{
			VendorID:        r.VendorID,
			EnvironmentCode: r.EnvironmentCode,
			VendorName:      r.AccountName,
			HHAXUniqueID:    r.AccountID,
			Component:       r.Component,
			Value:           r.Quantity,
			Total:           r.Total,
			MonthYear:       r.MonthYear,
		}
	}
	return out
}

// ImportValues returns the row's values in ImportColumns order. NULL text and
// a NULL value are nil.
func ImportValues(r domain.ImportRow) []interface{} {
	return []interface{}{
		r.VendorID,
		r.EnvironmentCode,
		nullable(r.VendorName),
		nullable(r.HHAXUniqueID),
		r.Component,
		nullableDecimal(r.Value),
		r.MonthYear,
	}
}

// BackupValues returns the row's values in BackupColumns order, shaped for a
// spreadsheet: NULL text becomes an empty cell, numbers stay numeric.
func BackupValues(r domain.BackupRow) []interface{} {
	return []interface{}{
		r.VendorID,
		r.EnvironmentCode,
		r.VendorName.String,
		r.HHAXUniqueID.String,
		r.Component,
		cell(r.Value),
		cell(r.Total),
		r.MonthYear,
	}
}

func nullableDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// cell renders a nullable number for the workbook: empty when NULL.
func cell(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}

func nullable(s sql.NullString) interface{} {
	if !s.Valid {
		return nil
	}
	return s.String
}
