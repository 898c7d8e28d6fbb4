package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/algorithms"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/report"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/repository"
)

// ReportService генерация отчётов о состоянии дорожной сети
type ReportService struct {
	nodes   repository.NodeRepository
	edges   repository.EdgeRepository
	weights algorithms.CostWeights
	cfg     *config.ReportConfig
}

// NewReportService создаёт сервис отчётов
func NewReportService(repos *repository.Repositories, weights algorithms.CostWeights, cfg *config.ReportConfig) *ReportService {
	return &ReportService{
		nodes:   repos.Nodes,
		edges:   repos.Edges,
		weights: weights,
		cfg:     cfg,
	}
}

// GeneratedReport готовый отчёт с метаданными для отдачи по HTTP
type GeneratedReport struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Generate собирает снимок сети и выгружает его в запрошенном формате
func (s *ReportService) Generate(ctx context.Context, formatName string) (*GeneratedReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.Generate")
	defer span.End()

	format, err := report.ParseFormat(formatName)
	if err != nil {
		return nil, apperror.NewWithField(apperror.CodeBadRequest, err.Error(), "format")
	}

	generator, err := report.New(format, s.cfg)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to create report generator")
	}

	nodes, err := s.nodes.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load nodes")
	}
	edges, err := s.edges.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load edges")
	}

	companyName := ""
	if s.cfg != nil {
		companyName = s.cfg.CompanyName
	}
	snap := report.BuildSnapshot(nodes, edges, s.weights, companyName)

	data, err := generator.Generate(ctx, snap)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to render report")
	}

	logger.Log.Info("Traffic report generated",
		"format", format,
		"edges", len(snap.Rows),
		"bytes", len(data),
	)

	return &GeneratedReport{
		Data:        data,
		ContentType: format.ContentType(),
		Filename:    fmt.Sprintf("traffic-report-%s.%s", time.Now().UTC().Format("20060102-150405"), format.Extension()),
	}, nil
}
