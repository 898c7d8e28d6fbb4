package report

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotocfg "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
)

// PDFGenerator генератор PDF отчётов
type PDFGenerator struct {
	cfg *config.ReportConfig
}

// NewPDFGenerator создаёт новый генератор
func NewPDFGenerator(cfg *config.ReportConfig) *PDFGenerator {
	return &PDFGenerator{cfg: cfg}
}

// Format возвращает формат генератора
func (g *PDFGenerator) Format() Format {
	return FormatPDF
}

// Стили
var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}
	dangerColor    = &props.Color{Red: 231, Green: 76, Blue: 60}
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241}
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141}

	titleStyle = props.Text{
		Size:  20,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: headerBgColor,
	}

	h2Style = props.Text{
		Size:  14,
		Style: fontstyle.Bold,
		Color: headerBgColor,
		Top:   5,
	}

	smallStyle = props.Text{
		Size:  8,
		Color: darkGrayColor,
	}

	metricValueStyle = props.Text{
		Size:  18,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: primaryColor,
	}

	metricLabelStyle = props.Text{
		Size:  9,
		Align: align.Center,
		Color: darkGrayColor,
	}

	tableHeaderStyle = &props.Cell{
		BackgroundColor: primaryColor,
	}

	tableHeaderTextStyle = props.Text{
		Size:  8,
		Style: fontstyle.Bold,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		Align: align.Center,
	}

	tableCellStyle = &props.Cell{
		BorderType:  border.Bottom,
		BorderColor: lightGrayColor,
	}

	tableCellTextStyle = props.Text{
		Size:  8,
		Align: align.Center,
	}
)

// Generate генерирует PDF отчёт
func (g *PDFGenerator) Generate(ctx context.Context, snap *Snapshot) ([]byte, error) {
	m := maroto.New(g.buildConfig())

	g.addHeader(m, snap)
	g.addSummary(m, snap)
	g.addEdgesTable(m, snap)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func (g *PDFGenerator) buildConfig() *entity.Config {
	pdf := config.PDFConfig{
		MarginTop:    15,
		MarginBottom: 15,
		MarginLeft:   15,
		MarginRight:  15,
	}
	if g.cfg != nil {
		pdf = g.cfg.PDF
	}

	builder := marotocfg.NewBuilder().
		WithTopMargin(pdf.MarginTop).
		WithBottomMargin(pdf.MarginBottom).
		WithLeftMargin(pdf.MarginLeft).
		WithRightMargin(pdf.MarginRight)
	if pdf.EnablePageNumbers {
		builder = builder.WithPageNumber()
	}
	return builder.Build()
}

func (g *PDFGenerator) addHeader(m core.Maroto, snap *Snapshot) {
	m.AddRow(14,
		text.NewCol(12, snap.Title, titleStyle),
	)
	m.AddRow(4,
		line.NewCol(12),
	)
	m.AddRow(6,
		text.NewCol(6, snap.CompanyName, smallStyle),
		text.NewCol(6, fmt.Sprintf("Generated: %s", formatTimestamp(snap.GeneratedAt)),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)
	m.AddRow(6)
}

func (g *PDFGenerator) addSummary(m core.Maroto, snap *Snapshot) {
	g.addSection(m, "Network Summary")

	g.addMetricCards(m, []metricCard{
		{Label: "Nodes", Value: fmt.Sprintf("%d", snap.Summary.NodeCount)},
		{Label: "Edges", Value: fmt.Sprintf("%d", snap.Summary.EdgeCount)},
		{Label: "Vehicles", Value: fmt.Sprintf("%d", snap.Summary.TotalVehicles)},
		{Label: "Congested", Value: fmt.Sprintf("%d", snap.Summary.CongestedEdges)},
	})

	m.AddRow(4)
	g.addMetricCards(m, []metricCard{
		{Label: "Total Queue (m)", Value: formatFloat(snap.Summary.TotalQueueM, 1)},
		{Label: "Avg Pressure", Value: formatFloat(snap.Summary.AvgPressure, 3)},
		{Label: "Active Edges", Value: fmt.Sprintf("%d", snap.Summary.ActiveEdgeCount)},
	})
}

func (g *PDFGenerator) addEdgesTable(m core.Maroto, snap *Snapshot) {
	if len(snap.Rows) == 0 {
		return
	}

	g.addSection(m, "Edge Metrics")

	m.AddRow(8,
		text.NewCol(2, "Edge", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "From / To", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Out Queue (m)", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Out Pressure", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "In Queue (m)", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Cost", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	maxRows := 30
	if g.cfg != nil && g.cfg.MaxRowsPerTable > 0 {
		maxRows = g.cfg.MaxRowsPerTable
	}

	for i, row := range snap.Rows {
		if i >= maxRows {
			m.AddRow(6,
				text.NewCol(12, fmt.Sprintf("... and %d more rows", len(snap.Rows)-maxRows), smallStyle),
			)
			break
		}

		pressureStyle := tableCellTextStyle
		if row.OutPressure >= 0.9 {
			pressureStyle.Color = dangerColor
		}

		m.AddRow(6,
			text.NewCol(2, row.EdgeID, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%s > %s", row.FromNodeID, row.ToNodeID), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(row.OutQueueM, 1), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(row.OutPressure, 3), pressureStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(row.InQueueM, 1), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(row.Cost, 2), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

type metricCard struct {
	Label string
	Value string
}

func (g *PDFGenerator) addMetricCards(m core.Maroto, cards []metricCard) {
	if len(cards) == 0 {
		return
	}

	colSize := 12 / len(cards)
	if colSize < 2 {
		colSize = 2
	}

	var cols []core.Col
	for _, card := range cards {
		cols = append(cols,
			col.New(colSize).Add(
				text.New(card.Value, metricValueStyle),
				text.New(card.Label, metricLabelStyle),
			),
		)
	}

	m.AddRow(18, cols...)
}

func (g *PDFGenerator) addSection(m core.Maroto, title string) {
	m.AddRow(10,
		text.NewCol(12, title, h2Style),
	)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: primaryColor}),
	)
	m.AddRow(4)
}
