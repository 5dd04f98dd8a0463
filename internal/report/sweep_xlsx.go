// Package report renders burnout sweep results for download.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"wisefido-risk/internal/risk"

	"github.com/xuri/excelize/v2"
)

const sweepSheet = "Burnout Sweep"

// SweepHeader column order of the sweep export.
var SweepHeader = []string{
	"Rank",
	"Caregiver ID",
	"Total Score",
	"Severity Tier",
	"Factors",
	"Alert Generated",
	"Top Recommendation",
	"Assessment ID",
	"Error",
}

var sweepColumnWidths = []float64{8, 24, 12, 14, 48, 16, 60, 38, 40}

// WriteSweepXLSX renders results in the order given (the sweep already sorts
// them). Caregivers that could not be evaluated keep their row with the
// error filled in.
func WriteSweepXLSX(agencyID string, results []risk.SweepResult) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open; close explicitly on every path.

	index, err := f.NewSheet(sweepSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Burnout sweep",
		Subject: agencyID,
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range SweepHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sweepSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sweepSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sweepSheet, col, col, sweepColumnWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		row := sweepRow(i+1, r)
		if err := f.SetSheetRow(sweepSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sweepSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel: %w", err)
	}
	return buf.Bytes(), nil
}

func sweepRow(rank int, r risk.SweepResult) []any {
	row := []any{rank, r.CaregiverID, "", "", "", "", "", "", ""}
	if a := r.Assessment; a != nil {
		types := make([]string, 0, len(a.Factors))
		for _, fct := range a.Factors {
			types = append(types, string(fct.Type))
		}
		row[2] = a.TotalScore
		row[3] = string(a.SeverityTier)
		row[4] = strings.Join(types, ", ")
		row[5] = yesNo(a.AlertGenerated)
		if len(a.Recommendations) > 0 {
			row[6] = a.Recommendations[0]
		}
		row[7] = a.ID
	}
	if r.Err != nil {
		row[8] = r.Err.Error()
	}
	return row
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
