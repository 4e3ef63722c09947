// Command monitor is a small desktop dashboard: it polls a spider
// database on a timer and shows each project's status and how many
// results it has collected, the operator-facing view the teacher's
// full crawl UI used to provide for a much wider SEO report.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/spider-crawler/spider/internal/monitor"
	"github.com/spider-crawler/spider/internal/storage"
)

func main() {
	dbPath := flag.String("db", "./data/spider.db", "path to the spider SQLite database")
	exportPath := flag.String("export", "", "path the Export snapshot button writes an xlsx snapshot to")
	flag.Parse()

	db, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("monitor: %v", err)
	}
	defer db.Close()

	a := app.New()
	w := a.NewWindow("Spider Monitor")
	w.Resize(fyne.NewSize(640, 420))

	status := widget.NewLabel("loading...")
	table := widget.NewTable(
		func() (int, int) { return 1, 3 },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, obj fyne.CanvasObject) {},
	)

	var rows [][]string
	refresh := func() {
		projects, err := db.ProjectDB().List()
		if err != nil {
			status.SetText(fmt.Sprintf("error: %v", err))
			return
		}

		rows = rows[:0]
		rows = append(rows, []string{"project", "status", "results"})
		for _, p := range projects {
			results, err := db.ResultDB().ListByProject(p.Name)
			if err != nil {
				status.SetText(fmt.Sprintf("error: %v", err))
				return
			}
			rows = append(rows, []string{p.Name, p.Status, fmt.Sprintf("%d", len(results))})
		}

		table.Length = func() (int, int) { return len(rows), 3 }
		table.UpdateCell = func(id widget.TableCellID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			if id.Row < len(rows) && id.Col < len(rows[id.Row]) {
				label.SetText(rows[id.Row][id.Col])
			}
		}
		table.Refresh()
		status.SetText(fmt.Sprintf("last refreshed %s", time.Now().Format(time.Kitchen)))
	}
	refresh()

	exportButton := widget.NewButton("Export snapshot", func() {
		if *exportPath == "" {
			status.SetText("no -export path configured")
			return
		}
		if err := exportSnapshot(db, *exportPath); err != nil {
			status.SetText(fmt.Sprintf("export failed: %v", err))
			return
		}
		status.SetText("exported to " + *exportPath)
	})

	content := container.NewBorder(
		container.NewVBox(widget.NewLabelWithStyle("Spider Monitor", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), status),
		exportButton,
		nil, nil,
		table,
	)
	w.SetContent(content)

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			refresh()
		}
	}()

	w.ShowAndRun()
}

// exportSnapshot writes one xlsx workbook summarizing every known
// project's result count, reusing internal/monitor's exporter.
func exportSnapshot(db *storage.Database, path string) error {
	projects, err := db.ProjectDB().List()
	if err != nil {
		return err
	}

	snapshots := make([]monitor.Snapshot, 0, len(projects))
	for _, p := range projects {
		results, err := db.ResultDB().ListByProject(p.Name)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, monitor.Snapshot{
			Project:    p.Name,
			Counters5m: map[string]float64{"results": float64(len(results))},
			Counters1h: map[string]float64{"results": float64(len(results))},
			QueueLen:   0,
		})
	}
	return monitor.Export(path, snapshots)
}
