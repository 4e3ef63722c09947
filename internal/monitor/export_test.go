package monitor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExportWritesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.xlsx")
	snapshots := []Snapshot{
		{
			Project:    "demo",
			Counters5m: map[string]float64{"fetch.200": 3},
			Counters1h: map[string]float64{"fetch.200": 12},
			QueueLen:   5,
		},
	}

	if err := Export(path, snapshots); err != nil {
		t.Fatalf("Export: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatal("exported workbook is empty")
	}
}

func TestSanitizeSheetNameTruncatesLongNames(t *testing.T) {
	long := "this-project-name-is-definitely-longer-than-31-characters"
	got := sanitizeSheetName(long)
	if len(got) > 31 {
		t.Fatalf("sanitizeSheetName produced %d chars, want <= 31", len(got))
	}
}
