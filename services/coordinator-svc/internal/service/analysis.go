package service

import (
	"context"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/analysis"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/repository"
)

// AnalysisService аналитика дорожной сети: заторы и статистика графа
type AnalysisService struct {
	nodes repository.NodeRepository
	edges repository.EdgeRepository
}

// NewAnalysisService создаёт сервис аналитики
func NewAnalysisService(repos *repository.Repositories) *AnalysisService {
	return &AnalysisService{
		nodes: repos.Nodes,
		edges: repos.Edges,
	}
}

// Congestion находит перегруженные направления по текущим метрикам
func (s *AnalysisService) Congestion(ctx context.Context, threshold float64, top int) (*analysis.CongestionReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnalysisService.Congestion")
	defer span.End()

	if threshold < 0 || threshold > 1 {
		return nil, apperror.NewWithField(apperror.CodeBadRequest,
			"threshold must be within [0,1]", "threshold")
	}
	if top < 0 {
		return nil, apperror.NewWithField(apperror.CodeBadRequest,
			"top must be non-negative", "top")
	}

	edges, err := s.edges.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load edges")
	}

	return analysis.FindCongestion(edges, threshold, top), nil
}

// Statistics строит сводную статистику топологии
func (s *AnalysisService) Statistics(ctx context.Context) (*analysis.TopologyStatistics, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnalysisService.Statistics")
	defer span.End()

	nodes, err := s.nodes.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load nodes")
	}
	edges, err := s.edges.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load edges")
	}

	return analysis.CalculateTopologyStatistics(nodes, edges), nil
}
