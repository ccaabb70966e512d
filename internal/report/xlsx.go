package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
)

const summarySheet = "Summary"

// WriteXLSX exports the per-target summary as a workbook with one sheet
func WriteXLSX(path string, summaries []domain.TargetSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if index, _ := f.GetSheetIndex(summarySheet); index == -1 {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
	}
	activeIndex, _ := f.GetSheetIndex(summarySheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range []string{"TargetId", "Distance", "Accuracy"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(summarySheet, cell, h)
	}

	for i, s := range summaries {
		row := i + 2
		for col, v := range []any{s.TargetID, s.Distance, s.Accuracy} {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(summarySheet, cell, v)
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "C", 14)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
