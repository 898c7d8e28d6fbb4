package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/algorithms"
)

// Format формат выгрузки отчёта
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// ParseFormat разбирает формат из query-параметра
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX, FormatPDF, FormatJSON:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// ContentType возвращает MIME-тип формата
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Extension возвращает расширение файла отчёта
func (f Format) Extension() string {
	return string(f)
}

// EdgeRow строка отчёта: состояние одного участка дороги
type EdgeRow struct {
	EdgeID      string  `json:"edge_id"`
	Name        string  `json:"name"`
	FromNodeID  string  `json:"from_node_id"`
	ToNodeID    string  `json:"to_node_id"`
	RoadLengthM float64 `json:"road_length_m"`
	IsActive    bool    `json:"is_active"`

	OutVehicles int     `json:"out_vehicles"`
	OutQueueM   float64 `json:"out_queue_m"`
	OutPressure float64 `json:"out_pressure"`
	InVehicles  int     `json:"in_vehicles"`
	InQueueM    float64 `json:"in_queue_m"`
	InPressure  float64 `json:"in_pressure"`

	Cost float64 `json:"cost"`
}

// Summary сводные показатели снимка сети
type Summary struct {
	NodeCount       int     `json:"node_count"`
	ActiveNodeCount int     `json:"active_node_count"`
	EdgeCount       int     `json:"edge_count"`
	ActiveEdgeCount int     `json:"active_edge_count"`
	TotalVehicles   int     `json:"total_vehicles"`
	TotalQueueM     float64 `json:"total_queue_m"`
	AvgPressure     float64 `json:"avg_pressure"`
	CongestedEdges  int     `json:"congested_edges"`
}

// Snapshot снимок состояния дорожной сети для отчёта
type Snapshot struct {
	Title       string    `json:"title"`
	CompanyName string    `json:"company_name"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Rows        []EdgeRow `json:"edges"`
}

// BuildSnapshot собирает снимок сети из текущей топологии и метрик
func BuildSnapshot(nodes []*domain.Node, edges []*domain.Edge, weights algorithms.CostWeights, companyName string) *Snapshot {
	snap := &Snapshot{
		Title:       "Traffic Network Report",
		CompanyName: companyName,
		GeneratedAt: time.Now().UTC(),
	}

	snap.Summary.NodeCount = len(nodes)
	for _, node := range nodes {
		if node.IsActive {
			snap.Summary.ActiveNodeCount++
		}
	}

	snap.Summary.EdgeCount = len(edges)
	pressureSum := 0.0
	observed := 0

	snap.Rows = make([]EdgeRow, 0, len(edges))
	for _, edge := range edges {
		if edge.IsActive {
			snap.Summary.ActiveEdgeCount++
		}

		out := edge.OutgoingTraffic
		in := edge.IncomingTraffic

		snap.Summary.TotalVehicles += out.TotalVehicles + in.TotalVehicles
		snap.Summary.TotalQueueM += out.QueueLengthM + in.QueueLengthM
		if out.LastUpdateTS > 0 {
			pressureSum += out.Pressure
			observed++
		}
		if out.Pressure >= domain.DefaultCongestionThreshold || in.Pressure >= domain.DefaultCongestionThreshold {
			snap.Summary.CongestedEdges++
		}

		snap.Rows = append(snap.Rows, EdgeRow{
			EdgeID:      edge.EdgeID,
			Name:        edge.Name,
			FromNodeID:  edge.OutNodeID,
			ToNodeID:    edge.InNodeID,
			RoadLengthM: edge.RoadLengthM,
			IsActive:    edge.IsActive,
			OutVehicles: out.TotalVehicles,
			OutQueueM:   out.QueueLengthM,
			OutPressure: out.Pressure,
			InVehicles:  in.TotalVehicles,
			InQueueM:    in.QueueLengthM,
			InPressure:  in.Pressure,
			Cost:        algorithms.EdgeCost(edge, weights),
		})
	}

	if observed > 0 {
		snap.Summary.AvgPressure = pressureSum / float64(observed)
	}

	sort.Slice(snap.Rows, func(i, j int) bool {
		return snap.Rows[i].EdgeID < snap.Rows[j].EdgeID
	})

	return snap
}

// Generator интерфейс генератора отчётов
type Generator interface {
	Generate(ctx context.Context, snap *Snapshot) ([]byte, error)
	Format() Format
}

// New создаёт генератор для указанного формата
func New(format Format, cfg *config.ReportConfig) (Generator, error) {
	switch format {
	case FormatCSV:
		return NewCSVGenerator(), nil
	case FormatXLSX:
		return NewExcelGenerator(cfg), nil
	case FormatPDF:
		return NewPDFGenerator(cfg), nil
	case FormatJSON:
		return NewJSONGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

func formatFloat(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
