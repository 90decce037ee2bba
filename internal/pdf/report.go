package pdf

import (
	"bytes"
	"fmt"

	"github.com/olgkv/todolist/internal/domain"

	"github.com/jung-kurt/gofpdf"
)

func BuildTasksReport(title string, tasks []domain.Task) ([]byte, error) {
	var buf bytes.Buffer
	if err := newTasksReport(title, tasks).Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// newTasksReport lays out the report. All text goes through the cp1252
// translator since the core fonts cannot render UTF-8.
func newTasksReport(title string, tasks []domain.Task) *gofpdf.Fpdf {
	p := gofpdf.New("P", "mm", "A4", "")
	tr := p.UnicodeTranslatorFromDescriptor("")

	p.AddPage()
	p.SetFont("Arial", "B", 14)
	p.Cell(40, 10, tr(title))
	p.Ln(12)

	p.SetFont("Arial", "", 11)
	if len(tasks) == 0 {
		p.Cell(40, 8, "No tasks")
		p.Ln(8)
	}

	for i, t := range tasks {
		status := t.Status
		if status == "" {
			status = "-"
		}
		p.MultiCell(0, 7, tr(fmt.Sprintf("%d. [%s] %s (id: %s)", i+1, status, t.Task, t.ID)), "", "L", false)
	}
	return p
}
