// Package report summarizes stored fatigue sessions and exports them as
// Excel workbooks.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dudu/drowsewatch/internal/drowsiness"
	"github.com/dudu/drowsewatch/internal/eventlog"
)

// Sheet names.
const (
	SummarySheet = "Summary"
	EventsSheet  = "Events"
)

// EventsHeader is the header row of the events sheet.
var EventsHeader = []string{"Time", "Face", "Event", "Description", "Value"}

// FaceSummary counts one face slot's events.
type FaceSummary struct {
	Face   int
	Alarms int
	Yawns  int
	Nods   int
}

// Total returns the event count for the face.
func (f FaceSummary) Total() int {
	return f.Alarms + f.Yawns + f.Nods
}

// Summary describes one session.
type Summary struct {
	SessionID string
	Start     time.Time
	End       time.Time
	Events    int
	Faces     []FaceSummary
}

// Duration returns the time between the first and last event.
func (s Summary) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Summarize counts events per face. Unknown kinds count toward Events only.
func Summarize(sessionID string, events []eventlog.StoredEvent) Summary {
	s := Summary{SessionID: sessionID, Events: len(events)}
	faces := map[int]*FaceSummary{}

	for i, e := range events {
		if i == 0 || e.OccurredAt.Before(s.Start) {
			s.Start = e.OccurredAt
		}
		if i == 0 || e.OccurredAt.After(s.End) {
			s.End = e.OccurredAt
		}

		f, ok := faces[e.Face]
		if !ok {
			f = &FaceSummary{Face: e.Face}
			faces[e.Face] = f
		}
		switch e.Kind {
		case drowsiness.EyesClosedAlarmRaised.String():
			f.Alarms++
		case drowsiness.YawnDetected.String():
			f.Yawns++
		case drowsiness.HeadNodDetected.String():
			f.Nods++
		}
	}

	for _, f := range faces {
		s.Faces = append(s.Faces, *f)
	}
	sort.Slice(s.Faces, func(i, j int) bool { return s.Faces[i].Face < s.Faces[j].Face })
	return s
}

// WriteXLSX writes a workbook with a summary sheet and an events sheet.
func WriteXLSX(w io.Writer, s Summary, events []eventlog.StoredEvent) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(EventsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummary(f, s, headerStyle); err != nil {
		return err
	}
	if err := writeEvents(f, events, headerStyle); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, s Summary, headerStyle int) error {
	rows := [][]any{
		{"Session", s.SessionID},
		{"Start", formatTime(s.Start)},
		{"End", formatTime(s.End)},
		{"Duration", s.Duration().Round(time.Second).String()},
		{"Events", s.Events},
		{},
		{"Face", "Drowsiness alarms", "Yawns", "Head nods", "Total"},
	}
	for _, face := range s.Faces {
		rows = append(rows, []any{face.Face, face.Alarms, face.Yawns, face.Nods, face.Total()})
	}

	if err := setRows(f, SummarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "A5", headerStyle); err != nil {
		return fmt.Errorf("failed to set summary style: %w", err)
	}
	if err := f.SetCellStyle(SummarySheet, "A7", "E7", headerStyle); err != nil {
		return fmt.Errorf("failed to set summary style: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "E", 20)
}

func writeEvents(f *excelize.File, events []eventlog.StoredEvent, headerStyle int) error {
	rows := make([][]any, 0, len(events)+1)
	header := make([]any, len(EventsHeader))
	for i, h := range EventsHeader {
		header[i] = h
	}
	rows = append(rows, header)
	for _, e := range events {
		rows = append(rows, []any{formatTime(e.OccurredAt), e.Face, e.Kind, e.Description, e.Value})
	}

	if err := setRows(f, EventsSheet, rows); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(EventsHeader), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(EventsSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	widths := []float64{26, 8, 26, 36, 12}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(EventsSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(eventlog.TimeLayout)
}
