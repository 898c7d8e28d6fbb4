package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
)

// CSVGenerator генератор CSV отчётов
type CSVGenerator struct{}

// NewCSVGenerator создаёт новый генератор
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Format возвращает формат генератора
func (g *CSVGenerator) Format() Format {
	return FormatCSV
}

// csvWriter обёртка для отслеживания ошибок
type csvWriter struct {
	w   *csv.Writer
	err error
}

func (cw *csvWriter) Write(record []string) {
	if cw.err != nil {
		return
	}
	cw.err = cw.w.Write(record)
}

func (cw *csvWriter) Flush() {
	if cw.err != nil {
		return
	}
	cw.w.Flush()
	cw.err = cw.w.Error()
}

// Generate генерирует CSV отчёт
func (g *CSVGenerator) Generate(ctx context.Context, snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	cw := &csvWriter{w: csv.NewWriter(&buf)}

	cw.Write([]string{"# " + snap.Title})
	cw.Write([]string{"Company", snap.CompanyName})
	cw.Write([]string{"Generated", formatTimestamp(snap.GeneratedAt)})
	cw.Write([]string{""})

	cw.Write([]string{"Network Summary"})
	cw.Write([]string{"Nodes", fmt.Sprintf("%d", snap.Summary.NodeCount)})
	cw.Write([]string{"Active Nodes", fmt.Sprintf("%d", snap.Summary.ActiveNodeCount)})
	cw.Write([]string{"Edges", fmt.Sprintf("%d", snap.Summary.EdgeCount)})
	cw.Write([]string{"Active Edges", fmt.Sprintf("%d", snap.Summary.ActiveEdgeCount)})
	cw.Write([]string{"Total Vehicles", fmt.Sprintf("%d", snap.Summary.TotalVehicles)})
	cw.Write([]string{"Total Queue (m)", formatFloat(snap.Summary.TotalQueueM, 2)})
	cw.Write([]string{"Avg Pressure", formatFloat(snap.Summary.AvgPressure, 4)})
	cw.Write([]string{"Congested Edges", fmt.Sprintf("%d", snap.Summary.CongestedEdges)})
	cw.Write([]string{""})

	cw.Write([]string{"Edges"})
	cw.Write([]string{
		"Edge ID", "Name", "From", "To", "Length (m)", "Active",
		"Out Vehicles", "Out Queue (m)", "Out Pressure",
		"In Vehicles", "In Queue (m)", "In Pressure", "Cost",
	})
	for _, row := range snap.Rows {
		cw.Write([]string{
			row.EdgeID,
			row.Name,
			row.FromNodeID,
			row.ToNodeID,
			formatFloat(row.RoadLengthM, 2),
			fmt.Sprintf("%v", row.IsActive),
			fmt.Sprintf("%d", row.OutVehicles),
			formatFloat(row.OutQueueM, 2),
			formatFloat(row.OutPressure, 4),
			fmt.Sprintf("%d", row.InVehicles),
			formatFloat(row.InQueueM, 2),
			formatFloat(row.InPressure, 4),
			formatFloat(row.Cost, 4),
		})
	}

	cw.Flush()
	if cw.err != nil {
		return nil, fmt.Errorf("csv write error: %w", cw.err)
	}

	return buf.Bytes(), nil
}
