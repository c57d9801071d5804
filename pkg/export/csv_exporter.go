package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// Row is one summoned candidate in a rendered call list.
type Row struct {
	Position     int
	Candidate    string
	Registration string
	Rank         string
}

// Table is a ranked call list ready for rendering.
type Table struct {
	Title string
	Rows  []Row
}

// Column order shared by both renderers.
var headers = []string{"position", "candidate", "registration", "rank"}

func (r Row) record() []string {
	return []string{strconv.Itoa(r.Position), r.Candidate, r.Registration, r.Rank}
}

// CSVExporter renders call-list tables into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the table.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(row.record()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
