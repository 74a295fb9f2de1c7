package sqlserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func newMock(t *testing.T) (*Extractor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, "Generations", "MonthlyUsage"), mock
}

func TestExtractor_Query(t *testing.T) {
	e := New(nil, "Gen]erations", "Usage")
	want := "SELECT * FROM [Gen]]erations].[dbo].[Usage] WHERE monthyear LIKE @p1"
	if got := e.Query(); got != want {
		t.Errorf("Query() = %q, want %q", got, want)
	}
}

func TestExtractor_Extract(t *testing.T) {
	e, mock := newMock(t)

	// Column order differs from the domain struct and includes an unused id column.
	rows := sqlmock.NewRows([]string{"id", "Total", "COMPONENT", "VendorID", "Quantity", "CostPer", "MONTHYEAR"}).
		AddRow(int64(1), "125.50", "Visits", " V100 ", "251", "0.50", "Mar-24").
		AddRow(int64(2), nil, "Users", int64(200), float64(3), nil, "Mar-24")

	mock.ExpectQuery(e.Query()).WithArgs("Mar-24").WillReturnRows(rows)

	got, err := e.Extract(context.Background(), "Mar-24")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}

	first := got[0]
	if first.VendorID != "V100" || first.Component != "Visits" || first.MonthYear != "Mar-24" {
		t.Errorf("unexpected first row: %+v", first)
	}
	if !first.Quantity.Valid || !first.Quantity.Decimal.Equal(decimal.NewFromInt(251)) {
		t.Errorf("Quantity = %+v, want 251", first.Quantity)
	}
	if !first.Total.Valid || !first.Total.Decimal.Equal(decimal.RequireFromString("125.5")) {
		t.Errorf("Total = %+v, want 125.5", first.Total)
	}
	if !first.CostPer.Valid || !first.CostPer.Decimal.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("CostPer = %+v, want 0.5", first.CostPer)
	}

	second := got[1]
	if second.VendorID != "200" {
		t.Errorf("numeric VendorID = %q, want \"200\"", second.VendorID)
	}
	if second.Total.Valid || second.CostPer.Valid {
		t.Errorf("NULL costs should stay invalid: %+v", second)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExtractor_Extract_NullQuantity(t *testing.T) {
	e, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"VendorID", "MONTHYEAR", "COMPONENT", "Quantity"}).
		AddRow("V1", "Mar-24", "Visits", nil).
		AddRow("V2", "Mar-24", "Visits", "0")
	mock.ExpectQuery(e.Query()).WithArgs("Mar-24").WillReturnRows(rows)

	got, err := e.Extract(context.Background(), "Mar-24")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got[0].Quantity.Valid {
		t.Errorf("NULL quantity should stay invalid, got %+v", got[0].Quantity)
	}
	if !got[1].Quantity.Valid || !got[1].Quantity.Decimal.IsZero() {
		t.Errorf("zero quantity should be a valid 0, got %+v", got[1].Quantity)
	}
}

func TestExtractor_Extract_MissingColumn(t *testing.T) {
	e, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"VendorID", "MONTHYEAR", "Quantity"}).
		AddRow("V1", "Mar-24", "1")
	mock.ExpectQuery(e.Query()).WithArgs("Mar-24").WillReturnRows(rows)

	_, err := e.Extract(context.Background(), "Mar-24")
	if err == nil || !strings.Contains(err.Error(), "component") {
		t.Errorf("expected missing component error, got %v", err)
	}
}

func TestExtractor_Extract_QueryError(t *testing.T) {
	e, mock := newMock(t)

	boom := errors.New("login failed")
	mock.ExpectQuery(e.Query()).WithArgs("Mar-24").WillReturnError(boom)

	_, err := e.Extract(context.Background(), "Mar-24")
	if !errors.Is(err, boom) {
		t.Errorf("Extract error = %v, want wrapped %v", err, boom)
	}
}

func TestExtractor_Extract_Empty(t *testing.T) {
	e, mock := newMock(t)

	mock.ExpectQuery(e.Query()).WithArgs("Mar-24").
		WillReturnRows(sqlmock.NewRows([]string{"VendorID", "MONTHYEAR", "COMPONENT", "Quantity"}))

	got, err := e.Extract(context.Background(), "Mar-24")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d rows, want 0", len(got))
	}
}

func TestOptions_DSN(t *testing.T) {
	o := Options{Host: "10.0.0.5", Instance: "SQLEXPRESS", Database: "Gen", User: "etl", Password: "p@ss"}
	got := o.DSN()
	for _, want := range []string{"sqlserver://", "etl:p%40ss@10.0.0.5", "/SQLEXPRESS", "database=Gen"} {
		if !strings.Contains(got, want) {
			t.Errorf("DSN %q missing %q", got, want)
		}
	}
}
