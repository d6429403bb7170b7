// Package report renders the processed job table into a styled XLSX workbook.
// The workbook mirrors what the dashboard shows: one row per file, a banded
// table, and duplicate vessel names flagged by conditional formatting.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"fleetpulse/internal/dataset"
)

const (
	// SheetName is the single worksheet every export carries.
	SheetName = "Sheet1"

	// TableName and TableStyle define the banded Excel table wrapping the data.
	TableName  = "JobSummaryTable"
	TableStyle = "TableStyleMedium2"

	// ContentType is the MIME type served with the download.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Headers is the export column order. It differs from the dashboard table,
// which shows the date last.
var Headers = []string{
	"File Name",
	"Vessel Name",
	"Date Extracted from File Name",
	"Total Count of Jobs",
	"New Job Count",
}

// StyleConfig carries the workbook palette as RGB hex strings without the
// leading '#'.
type StyleConfig struct {
	HeaderFill    string
	HeaderFont    string
	ZebraFill     string
	DuplicateFill string
}

// DefaultStyle returns the dashboard palette: dark blue headers, light grey
// banding, orange duplicate highlight.
func DefaultStyle() StyleConfig {
	return StyleConfig{
		HeaderFill:    "1F4E78",
		HeaderFont:    "FFFFFF",
		ZebraFill:     "F0F0F0",
		DuplicateFill: "FFB266",
	}
}

// Filename builds the timestamped download name for an export generated now.
func Filename(now time.Time) string {
	return "Job_Status_Report_" + now.Format("20060102_150405") + ".xlsx"
}

func thinBorders() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	borders := make([]excelize.Border, 0, len(sides))
	for _, side := range sides {
		borders = append(borders, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return borders
}

// Render writes the table into a new workbook and returns the XLSX bytes.
// Row order is preserved exactly as given; callers sort before rendering.
// Failed files render their counts as the "Error" sentinel instead of numbers.
func Render(t *dataset.Table, style StyleConfig) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(SheetName, "A1", &Headers); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	widths := make([]int, len(Headers))
	for i, h := range Headers {
		widths[i] = len(h)
	}

	for i, row := range t.Rows {
		cells := []any{row.FileName, row.VesselName, row.ExtractedDate}
		if row.Failed {
			cells = append(cells, row.TotalJobsCell(), row.NewJobsCell())
		} else {
			cells = append(cells, row.TotalJobCount, row.NewJobCount)
		}

		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(SheetName, axis, &cells); err != nil {
			return nil, fmt.Errorf("write data row: %w", err)
		}

		for col, text := range []string{
			row.FileName, row.VesselName, row.ExtractedDate,
			row.TotalJobsCell(), row.NewJobsCell(),
		} {
			if len(text) > widths[col] {
				widths[col] = len(text)
			}
		}
	}

	lastRow := len(t.Rows) + 1
	lastCol, err := excelize.ColumnNumberToName(len(Headers))
	if err != nil {
		return nil, fmt.Errorf("column name: %w", err)
	}

	if err := addTable(f, lastCol, lastRow); err != nil {
		return nil, err
	}
	if err := applyStyles(f, style, lastCol, lastRow); err != nil {
		return nil, err
	}
	if len(t.Rows) > 0 {
		if err := flagDuplicateVessels(f, style, lastRow); err != nil {
			return nil, err
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, float64(w+2)); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func addTable(f *excelize.File, lastCol string, lastRow int) error {
	rowStripes := true
	err := f.AddTable(SheetName, &excelize.Table{
		Range:           fmt.Sprintf("A1:%s%d", lastCol, lastRow),
		Name:            TableName,
		StyleName:       TableStyle,
		ShowRowStripes:  &rowStripes,
		ShowFirstColumn: false,
		ShowLastColumn:  false,
	})
	if err != nil {
		return fmt.Errorf("add table: %w", err)
	}
	return nil
}

func applyStyles(f *excelize.File, style StyleConfig, lastCol string, lastRow int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: style.HeaderFont},
		Fill: excelize.Fill{Type: "pattern", Color: []string{style.HeaderFill}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: thinBorders(),
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	centered := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: centered,
		Border:    thinBorders(),
	})
	if err != nil {
		return fmt.Errorf("body style: %w", err)
	}
	zebraStyle, err := f.NewStyle(&excelize.Style{
		Alignment: centered,
		Fill:      excelize.Fill{Type: "pattern", Color: []string{style.ZebraFill}, Pattern: 1},
		Border:    thinBorders(),
	})
	if err != nil {
		return fmt.Errorf("zebra style: %w", err)
	}

	// Banding lands on even worksheet rows, so the first data row is shaded.
	for row := 2; row <= lastRow; row++ {
		styleID := bodyStyle
		if row%2 == 0 {
			styleID = zebraStyle
		}
		start := fmt.Sprintf("A%d", row)
		end := fmt.Sprintf("%s%d", lastCol, row)
		if err := f.SetCellStyle(SheetName, start, end, styleID); err != nil {
			return fmt.Errorf("apply row style: %w", err)
		}
	}
	return nil
}

func flagDuplicateVessels(f *excelize.File, style StyleConfig, lastRow int) error {
	dxf, err := f.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{style.DuplicateFill}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("duplicate style: %w", err)
	}
	rangeRef := fmt.Sprintf("B2:B%d", lastRow)
	err = f.SetConditionalFormat(SheetName, rangeRef, []excelize.ConditionalFormatOptions{
		{Type: "duplicate", Criteria: "=", Format: &dxf},
	})
	if err != nil {
		return fmt.Errorf("duplicate rule: %w", err)
	}
	return nil
}
