package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/shopspring/decimal"
)

func testOptions() Options {
	return Options{
		Backend:      "snowflake",
		Account:      "acme-xy12345",
		User:         "ETL_USER",
		LookupDB:     "PC_FIVETRAN_DB",
		LoadDB:       "MAXIO",
		BillingTable: "GEN_MONTHLY_BILLING",
	}
}

func newMockSnowflake(t *testing.T) (*Snowflake, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	s, err := NewSnowflake(db, testOptions())
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mock
}

func TestSnowflake_LookupAccounts(t *testing.T) {
	s, mock := newMockSnowflake(t)

	want := "SELECT id, legacy_id_c, name FROM PC_FIVETRAN_DB.SALESFORCE.ACCOUNT WHERE is_deleted = false AND legacy_id_c IS NOT NULL"
	if s.LookupQuery() != want {
		t.Fatalf("LookupQuery = %q", s.LookupQuery())
	}

	mock.ExpectQuery(want).WillReturnRows(
		sqlmock.NewRows([]string{"ID", "LEGACY_ID_C", "NAME"}).
			AddRow("001A", "V1", "Acme").
			AddRow("001B", "V2", nil),
	)

	got, err := s.LookupAccounts(context.Background())
	if err != nil {
		t.Fatalf("LookupAccounts: %v", err)
	}
	if len(got) != 2 || got[0] != (domain.AccountRecord{ID: "001A", LegacyID: "V1", Name: "Acme"}) || got[1].Name != "" {
		t.Errorf("LookupAccounts = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSnowflake_AppendBillingRows(t *testing.T) {
	s, mock := newMockSnowflake(t)

	rows := []domain.ImportRow{
		{
			VendorID: "V1", EnvironmentCode: "GEN",
			VendorName:   sql.NullString{String: "Acme", Valid: true},
			HHAXUniqueID: sql.NullString{String: "001A", Valid: true},
			Component:    "Visits", Value: decimal.NewNullDecimal(decimal.NewFromInt(10)), MonthYear: "Mar-24",
		},
		{
			VendorID: "V404", EnvironmentCode: "GEN",
			Component: "Users", Value: decimal.NewNullDecimal(decimal.RequireFromString("2.5")), MonthYear: "Mar-24",
		},
	}

	stmt := s.InsertStatement(2)
	wantStmt := "INSERT INTO MAXIO.PUBLIC.GEN_MONTHLY_BILLING (VENDORID, ENVIRONMENTCODE, VENDORNAME, HHAXUNIQUEID, COMPONENT, VALUE, MONTHYEAR) VALUES (?, ?, ?, ?, ?, ?, ?), (?, ?, ?, ?, ?, ?, ?)"
	if stmt != wantStmt {
		t.Fatalf("InsertStatement =\n%s\nwant\n%s", stmt, wantStmt)
	}

	mock.ExpectExec(wantStmt).
		WithArgs("V1", "GEN", "Acme", "001A", "Visits", "10", "Mar-24",
			"V404", "GEN", nil, nil, "Users", "2.5", "Mar-24").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := s.AppendBillingRows(context.Background(), rows); err != nil {
		t.Fatalf("AppendBillingRows: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSnowflake_AppendBillingRows_EmptyAndError(t *testing.T) {
	s, mock := newMockSnowflake(t)

	if err := s.AppendBillingRows(context.Background(), nil); err != nil {
		t.Fatalf("empty append: %v", err)
	}

	boom := errors.New("warehouse suspended")
	mock.ExpectExec(s.InsertStatement(1)).WillReturnError(boom)

	err := s.AppendBillingRows(context.Background(), []domain.ImportRow{{VendorID: "V1", EnvironmentCode: "GEN"}})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSnowflake_EnsureBillingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSnowflake(db, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS MAXIO\.PUBLIC\.GEN_MONTHLY_BILLING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.EnsureBillingTable(context.Background()); err != nil {
		t.Fatalf("EnsureBillingTable: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestNewSnowflake_RejectsUnsafeIdentifiers(t *testing.T) {
	opts := testOptions()
	opts.BillingTable = "GEN; DROP TABLE X"
	if _, err := NewSnowflake(nil, opts); err == nil || !strings.Contains(err.Error(), "billing table") {
		t.Errorf("expected identifier error, got %v", err)
	}
}
