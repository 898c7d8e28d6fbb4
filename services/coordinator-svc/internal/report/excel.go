package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
)

// ExcelGenerator генератор xlsx отчётов
type ExcelGenerator struct {
	maxRows int
}

// NewExcelGenerator создаёт новый генератор
func NewExcelGenerator(cfg *config.ReportConfig) *ExcelGenerator {
	maxRows := 0
	if cfg != nil {
		maxRows = cfg.MaxRowsPerTable
	}
	return &ExcelGenerator{maxRows: maxRows}
}

// Format возвращает формат генератора
func (g *ExcelGenerator) Format() Format {
	return FormatXLSX
}

// cellAddr возвращает адрес ячейки вида A1
func cellAddr(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// Generate генерирует xlsx отчёт: лист сводки и лист рёбер
func (g *ExcelGenerator) Generate(ctx context.Context, snap *Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // буфер в памяти

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	g.writeSummarySheet(f, snap, headerStyle)
	g.writeEdgesSheet(f, snap, headerStyle)

	// Дефолтный лист больше не нужен
	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *ExcelGenerator) writeSummarySheet(f *excelize.File, snap *Snapshot, headerStyle int) {
	sheet := "Summary"
	f.NewSheet(sheet)

	row := 1
	f.SetCellValue(sheet, cellAddr("A", row), snap.Title)
	f.MergeCell(sheet, cellAddr("A", row), cellAddr("B", row))
	row++
	f.SetCellValue(sheet, cellAddr("A", row), "Company")
	f.SetCellValue(sheet, cellAddr("B", row), snap.CompanyName)
	row++
	f.SetCellValue(sheet, cellAddr("A", row), "Generated")
	f.SetCellValue(sheet, cellAddr("B", row), formatTimestamp(snap.GeneratedAt))
	row += 2

	f.SetCellValue(sheet, cellAddr("A", row), "Network Summary")
	f.SetCellStyle(sheet, cellAddr("A", row), cellAddr("B", row), headerStyle)
	row++

	summary := []struct {
		label string
		value any
	}{
		{"Nodes", snap.Summary.NodeCount},
		{"Active Nodes", snap.Summary.ActiveNodeCount},
		{"Edges", snap.Summary.EdgeCount},
		{"Active Edges", snap.Summary.ActiveEdgeCount},
		{"Total Vehicles", snap.Summary.TotalVehicles},
		{"Total Queue (m)", snap.Summary.TotalQueueM},
		{"Avg Pressure", snap.Summary.AvgPressure},
		{"Congested Edges", snap.Summary.CongestedEdges},
	}
	for _, item := range summary {
		f.SetCellValue(sheet, cellAddr("A", row), item.label)
		f.SetCellValue(sheet, cellAddr("B", row), item.value)
		row++
	}
}

func (g *ExcelGenerator) writeEdgesSheet(f *excelize.File, snap *Snapshot, headerStyle int) {
	sheet := "Edges"
	f.NewSheet(sheet)

	headers := []string{
		"Edge ID", "Name", "From", "To", "Length (m)", "Active",
		"Out Vehicles", "Out Queue (m)", "Out Pressure",
		"In Vehicles", "In Queue (m)", "In Pressure", "Cost",
	}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, cellAddr(col, 1), h)
	}
	f.SetCellStyle(sheet, "A1", "M1", headerStyle)

	for i, edge := range snap.Rows {
		if g.maxRows > 0 && i >= g.maxRows {
			f.SetCellValue(sheet, cellAddr("A", i+2),
				fmt.Sprintf("... and %d more rows", len(snap.Rows)-g.maxRows))
			break
		}

		row := i + 2
		values := []any{
			edge.EdgeID, edge.Name, edge.FromNodeID, edge.ToNodeID,
			edge.RoadLengthM, edge.IsActive,
			edge.OutVehicles, edge.OutQueueM, edge.OutPressure,
			edge.InVehicles, edge.InQueueM, edge.InPressure,
			edge.Cost,
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, cellAddr(col, row), v)
		}
	}
}
