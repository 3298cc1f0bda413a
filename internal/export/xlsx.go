package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"task-list/internal/model"
)

const sheetName = "Data"

var xlsxHeader = []interface{}{"No", "Name", "Type", "Count", "Completed"}

// WriteXLSX writes a single "Data" sheet, one row per entry.
func WriteXLSX(w io.Writer, entries []model.Entry) error {
	if len(entries) == 0 {
		return ErrEmpty
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &xlsxHeader); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{i + 1, e.Name, e.Type, e.Count, completedLabel(e.Completed)}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(sheetName, "B", "C", 24); err != nil {
		return fmt.Errorf("xlsx layout: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
