package accountreport

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuongbtq/billing-inspector/internal/branch"
	"github.com/xuri/excelize/v2"
)

const (
	reportTitle   = "远传出账明细"
	categoryLabel = "类目"

	headerRow    = 2
	firstDataCol = 2
)

// reportRow places a metric on its fixed template row
type reportRow struct {
	Row    int
	Label  string
	Metric string
}

// reportRows is the template layout, rows 3 to 10
var reportRows = []reportRow{
	{Row: 3, Label: "本周期户表应出账", Metric: HouseholdExpected},
	{Row: 4, Label: "本周期户表实际出账", Metric: HouseholdBilled},
	{Row: 5, Label: "上周期户表实际出账", Metric: HouseholdPreviousPeriod},
	{Row: 6, Label: "去年同期户表实际出账", Metric: HouseholdLastYear},
	{Row: 7, Label: "本周期大路表应出账", Metric: LargeMeterExpected},
	{Row: 8, Label: "本周期大路表实际出账", Metric: LargeMeterBilled},
	{Row: 9, Label: "上周期大路表实际出账", Metric: LargeMeterPreviousPeriod},
	{Row: 10, Label: "去年同期大路表实际出账", Metric: LargeMeterLastYear},
}

// WriteExcel fills the report workbook and saves it to outputPath. The
// template is used when it exists; otherwise a bare layout is generated.
// Branch i goes to column 2+i.
func WriteExcel(reports []CompanyReport, templatePath, outputPath string) (err error) {
	f, sheet, err := openWorkbook(templatePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close workbook: %w", cerr)
		}
	}()

	for i, report := range reports {
		col := firstDataCol + i
		if err := setCell(f, sheet, col, headerRow, branch.DisplayName(report.Company)); err != nil {
			return err
		}
		for _, row := range reportRows {
			if err := setCell(f, sheet, col, row.Row, report.Value(row.Metric)); err != nil {
				return err
			}
		}
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save report %s: %w", outputPath, err)
	}
	return nil
}

func openWorkbook(templatePath string) (*excelize.File, string, error) {
	if templatePath != "" {
		f, err := excelize.OpenFile(templatePath)
		if err == nil {
			sheets := f.GetSheetList()
			if len(sheets) == 0 {
				f.Close()
				return nil, "", fmt.Errorf("report template %s has no sheet", templatePath)
			}
			return f, sheets[0], nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("failed to open report template %s: %w", templatePath, err)
		}
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetCellValue(sheet, "A1", reportTitle); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to set report title: %w", err)
	}
	if err := f.SetCellValue(sheet, "A2", categoryLabel); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to set category header: %w", err)
	}
	for _, row := range reportRows {
		if err := setCell(f, sheet, 1, row.Row, row.Label); err != nil {
			f.Close()
			return nil, "", err
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 24); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to set column width: %w", err)
	}
	return f, sheet, nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}
