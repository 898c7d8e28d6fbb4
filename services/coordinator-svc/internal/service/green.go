package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/metrics"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/algorithms"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/detector"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/repository"
)

// GreenService расчёт зелёного времени узла по кадрам его камер
type GreenService struct {
	nodes    repository.NodeRepository
	edges    repository.EdgeRepository
	detector detector.Detector
	params   algorithms.GreenParams
}

// NewGreenService создаёт сервис расчёта зелёного времени
func NewGreenService(repos *repository.Repositories, det detector.Detector, params algorithms.GreenParams) *GreenService {
	return &GreenService{
		nodes:    repos.Nodes,
		edges:    repos.Edges,
		detector: det,
		params:   params,
	}
}

// CalculateGreen обрабатывает кадры исходящих рёбер узла и распределяет
// цикл светофора. Для каждого кадра: распознать, записать метрики в слот
// outgoing ребра, накопить состояние. Сбой детектора прерывает запрос,
// но уже записанные метрики остаются в хранилище.
func (s *GreenService) CalculateGreen(ctx context.Context, nodeID string, images map[string][]byte) (*domain.GreenTimesResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "GreenService.CalculateGreen")
	defer span.End()

	started := time.Now()

	if _, err := s.nodes.Get(ctx, nodeID); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return nil, apperror.NewWithField(apperror.CodeNotFound,
				fmt.Sprintf("node %q does not exist", nodeID), "node_id")
		}
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load node")
	}

	outgoing, err := s.edges.OutgoingEdges(ctx, nodeID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load outgoing edges")
	}
	byID := make(map[string]*domain.Edge, len(outgoing))
	for _, edge := range outgoing {
		byID[edge.EdgeID] = edge
	}

	// Стабильный порядок обработки: при сбое детектора в журнале видно,
	// какие рёбра успели получить свежие метрики
	edgeIDs := make([]string, 0, len(images))
	for edgeID := range images {
		edgeIDs = append(edgeIDs, edgeID)
	}
	sort.Strings(edgeIDs)

	now := time.Now().Unix()
	states := make([]algorithms.EdgeState, 0, len(edgeIDs))
	mlResults := make([]domain.MLResult, 0, len(edgeIDs))

	for _, edgeID := range edgeIDs {
		edge, ok := byID[edgeID]
		if !ok {
			return nil, apperror.NewWithField(apperror.CodeNotConnected,
				fmt.Sprintf("edge %q is not an outgoing edge of node %q", edgeID, nodeID), "edge_id")
		}

		measurement, err := s.detector.Detect(ctx, images[edgeID], edge.CameraID)
		if err != nil {
			metrics.Get().RecordDetectorRequest(driverName(s.detector), false)
			metrics.Get().RecordGreenAllocation(false, nil)
			if apperror.Is(err, apperror.CodeUnknownCamera) || apperror.Is(err, apperror.CodeDetectorFailure) {
				return nil, err
			}
			return nil, apperror.Wrap(err, apperror.CodeDetectorFailure, "detector call failed")
		}
		metrics.Get().RecordDetectorRequest(driverName(s.detector), true)

		total := measurement.Total()
		patch := &domain.MetricsPatch{
			TotalVehicles: &total,
			QueueLengthM:  &measurement.QueueLengthM,
			Density:       &measurement.Density,
			Pressure:      &measurement.Pressure,
		}

		updated, err := s.edges.UpdateMetrics(ctx, edgeID, domain.DirectionOutgoing, patch, now)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to persist detector metrics")
		}

		slot := updated.OutgoingTraffic
		states = append(states, algorithms.EdgeState{
			EdgeID:        edgeID,
			TotalVehicles: slot.TotalVehicles,
			QueueLengthM:  slot.QueueLengthM,
			Pressure:      slot.Pressure,
			LastGreenTS:   slot.LastGreenTS,
		})
		mlResults = append(mlResults, domain.MLResult{
			EdgeID: edgeID,
			ML: map[string]any{
				"vehicle_counts": measurement.VehicleCounts,
				"queue_length_m": measurement.QueueLengthM,
				"density":        measurement.Density,
				"pressure":       measurement.Pressure,
			},
		})
	}

	greenTimes := algorithms.AllocateGreen(states, now, s.params)

	// Рёбра, получившие фазу, запоминают момент выдачи зелёного.
	// Сбой этой записи не отменяет уже рассчитанный ответ.
	for edgeID := range greenTimes {
		ts := now
		if _, err := s.edges.UpdateMetrics(ctx, edgeID, domain.DirectionOutgoing,
			&domain.MetricsPatch{LastGreenTS: &ts}, now); err != nil {
			logger.Log.Warn("Failed to stamp green grant", "edge_id", edgeID, "error", err)
		}
	}

	metrics.Get().RecordGreenAllocation(true, greenTimes)
	telemetry.SetAttributes(ctx, telemetry.GreenAttributes(nodeID, len(edgeIDs), s.params.CycleTime)...)

	logger.Log.Info("Green times allocated",
		"node_id", nodeID,
		"edges", len(edgeIDs),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return &domain.GreenTimesResponse{
		NodeID:     nodeID,
		GreenTimes: greenTimes,
		EdgesUsed:  edgeIDs,
		MLResults:  mlResults,
	}, nil
}

func driverName(d detector.Detector) string {
	switch d.(type) {
	case *detector.FakeDetector:
		return string(detector.DriverTypeFake)
	default:
		return string(detector.DriverTypeHTTP)
	}
}
