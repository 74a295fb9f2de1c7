package workbook

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// MIMEType is the content type of an .xlsx attachment.
const MIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BackupSheet is the sheet name used for the usage backup.
const BackupSheet = "Usage Backup"

// FileName returns the attachment name for a month, e.g. "Generations Usage - Mar-24.xlsx".
func FileName(monthYear string) string {
	return fmt.Sprintf("Generations Usage - %s.xlsx", monthYear)
}

// Encode writes a single-sheet workbook with a header row followed by rows and
// returns the file bytes. No styling is applied. Each row must have the same
// length as header.
func Encode(sheet string, header []string, rows [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("workbook: naming sheet: %w", err)
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return nil, fmt.Errorf("workbook: writing header: %w", err)
	}

	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("workbook: row %d has %d values, header has %d", i+1, len(row), len(header))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("workbook: row %d: %w", i+1, err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("workbook: writing row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("workbook: serializing: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads every row of sheet as displayed text, header included.
// Trailing empty cells in a row are omitted.
func Decode(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("workbook: opening: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("workbook: reading sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// Sheets lists the sheet names in data.
func Sheets(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("workbook: opening: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}
