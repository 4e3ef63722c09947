// Package monitor snapshots counters and queue state into a workbook
// an operator can open directly, the same niche the teacher's report
// exporter fills for its own audit tables.
package monitor

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// Snapshot is one point-in-time view of a project's health, as
// reported by the fetcher's Counter5m/Counter1h and the scheduler's
// TaskQueue.Len.
type Snapshot struct {
	Project    string
	Counters5m map[string]float64
	Counters1h map[string]float64
	QueueLen   int
}

// Export writes snapshots to an .xlsx workbook at path, one sheet per
// project plus a summary sheet, with a styled header row on each sheet.
func Export(path string, snapshots []Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"00C853"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	if err := writeSummarySheet(f, "Summary", headerStyle, snapshots); err != nil {
		return err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(0)

	for _, snap := range snapshots {
		sheetName := sanitizeSheetName(snap.Project)
		if _, err := f.NewSheet(sheetName); err != nil {
			return fmt.Errorf("monitor: new sheet %s: %w", sheetName, err)
		}
		if err := writeProjectSheet(f, sheetName, headerStyle, snap); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("monitor: save %s: %w", path, err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, sheetName string, headerStyle int, snapshots []Snapshot) error {
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("monitor: rename default sheet: %w", err)
	}

	cols := []string{"project", "queue_len"}
	for i, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, c)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, snap := range snapshots {
		row := i + 2
		f.SetCellValue(sheetName, cellAt(1, row), snap.Project)
		f.SetCellValue(sheetName, cellAt(2, row), snap.QueueLen)
	}
	return nil
}

func writeProjectSheet(f *excelize.File, sheetName string, headerStyle int, snap Snapshot) error {
	cols := []string{"metric", "5m_avg", "1h_avg"}
	for i, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, c)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	metrics := mergedMetricNames(snap.Counters5m, snap.Counters1h)
	for i, metric := range metrics {
		row := i + 2
		f.SetCellValue(sheetName, cellAt(1, row), metric)
		f.SetCellValue(sheetName, cellAt(2, row), snap.Counters5m[metric])
		f.SetCellValue(sheetName, cellAt(3, row), snap.Counters1h[metric])
	}
	return nil
}

func mergedMetricNames(a, b map[string]float64) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func cellAt(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func sanitizeSheetName(name string) string {
	if name == "" {
		return "project"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
