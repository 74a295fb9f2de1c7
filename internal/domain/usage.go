package domain

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// EnvironmentCode tags every output row with the source system it came from.
const EnvironmentCode = "GEN"

// UsageRecord is one row of monthly vendor usage read from the source database.
// Only the columns the pipeline consumes are kept; anything else the source
// table returns is dropped at extraction time.
type UsageRecord struct {
	VendorID  string              // "VendorID"
	MonthYear string              // "MONTHYEAR", e.g. "Mar-24"
	Component string              // "COMPONENT"
	Quantity  decimal.NullDecimal // "Quantity", NULLABLE
	CostPer   decimal.NullDecimal // "CostPer", NULLABLE
	Total     decimal.NullDecimal // "Total", NULLABLE
}

// AccountRecord is one Salesforce account synced into the warehouse.
type AccountRecord struct {
	ID       string // canonical Salesforce id
	LegacyID string // legacy_id_c, joins to UsageRecord.VendorID
	Name     string
}

// EnrichedRecord is a UsageRecord left-joined to its account.
// AccountID and AccountName are invalid when no account matched.
type EnrichedRecord struct {
	UsageRecord
	AccountID       sql.NullString
	AccountName     sql.NullString
	EnvironmentCode string
}

// Matched reports whether the usage row found an account.
func (r EnrichedRecord) Matched() bool {
	return r.AccountID.Valid
}

// ImportRow is the shape written to the warehouse billing table.
type ImportRow struct {
	VendorID        string
	EnvironmentCode string
	VendorName      sql.NullString
	HHAXUniqueID    sql.NullString
	Component       string
	Value           decimal.NullDecimal
	MonthYear       string
}

// BackupRow is the shape written to the emailed backup workbook.
type BackupRow struct {
	VendorID        string
	EnvironmentCode string
	VendorName      sql.NullString
	HHAXUniqueID    sql.NullString
	Component       string
	Value           decimal.NullDecimal
	Total           decimal.NullDecimal
	MonthYear       string
}
