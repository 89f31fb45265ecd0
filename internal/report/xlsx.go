package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// RenderXLSX renders a Table as an XLSX workbook (as bytes) for the
// spreadsheet download variant.
func RenderXLSX(t Table) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Extractions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet so the workbook only carries ours.
	_ = f.DeleteSheet("Sheet1")

	for i, col := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col)
	}

	for r, row := range t.Rows {
		for i, col := range t.Columns {
			if v, ok := row[col]; ok {
				cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
				_ = f.SetCellValue(sheet, cell, v)
			}
		}
	}

	// Widen the identity columns; field columns keep the default.
	_ = f.SetColWidth(sheet, "A", "A", 24)
	_ = f.SetColWidth(sheet, "B", "B", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
