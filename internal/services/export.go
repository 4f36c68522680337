package services

import (
	"bytes"
	"fmt"

	"github.com/moneytrail/apiserver/types"
	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the media type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export is a rendered download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

func buildWorkbook(kind types.Kind, items []types.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Income"
	labelHeader := "Source"
	if kind == types.KindExpense {
		sheet = "Expense"
		labelHeader = "Category"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &[]any{labelHeader, "Amount", "Date"}); err != nil {
		return nil, err
	}
	for i, tx := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{tx.Label, tx.Amount, tx.Date.Format("2006-01-02")}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 24); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "C", "C", 12); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
