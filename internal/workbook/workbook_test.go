package workbook

import (
	"reflect"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	header := []string{"VENDORID", "ENVIRONMENTCODE", "VENDORNAME", "HHAXUNIQUEID", "COMPONENT", "VALUE", "Total", "MONTHYEAR"}
	rows := [][]interface{}{
		{"V1", "GEN", "Acme Home Care", "001A", "Visits", float64(251), 125.5, "Mar-24"},
		{"V2", "GEN", "Bright Health", "001B", "Users", float64(4), float64(1), "Mar-24"},
		{"V404", "GEN", "", "", "Visits", float64(7), "", "Mar-24"},
	}

	data, err := Encode(BackupSheet, header, rows)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	sheets, err := Sheets(data)
	if err != nil {
		t.Fatalf("Sheets: %v", err)
	}
	if !reflect.DeepEqual(sheets, []string{BackupSheet}) {
		t.Errorf("Sheets = %v, want single %q", sheets, BackupSheet)
	}

	got, err := Decode(data, BackupSheet)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := [][]string{
		header,
		{"V1", "GEN", "Acme Home Care", "001A", "Visits", "251", "125.5", "Mar-24"},
		{"V2", "GEN", "Bright Health", "001B", "Users", "4", "1", "Mar-24"},
		{"V404", "GEN", "", "", "Visits", "7", "", "Mar-24"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestEncode_HeaderOnly(t *testing.T) {
	data, err := Encode(BackupSheet, []string{"A", "B"}, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, BackupSheet)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, [][]string{{"A", "B"}}) {
		t.Errorf("Decode = %v", got)
	}
}

func TestEncode_RaggedRow(t *testing.T) {
	_, err := Encode(BackupSheet, []string{"A", "B"}, [][]interface{}{{"only one"}})
	if err == nil {
		t.Error("expected error for ragged row")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("Mar-24"); got != "Generations Usage - Mar-24.xlsx" {
		t.Errorf("FileName = %q", got)
	}
}
