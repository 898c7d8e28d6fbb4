package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/metrics"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/repository"
)

// TopologyService операции над дорожным графом: узлы, рёбра, метрики
type TopologyService struct {
	nodes repository.NodeRepository
	edges repository.EdgeRepository
}

// NewTopologyService создаёт сервис топологии
func NewTopologyService(repos *repository.Repositories) *TopologyService {
	return &TopologyService{
		nodes: repos.Nodes,
		edges: repos.Edges,
	}
}

// AddNode регистрирует новый перекрёсток
func (s *TopologyService) AddNode(ctx context.Context, node *domain.Node) error {
	ctx, span := telemetry.StartSpan(ctx, "TopologyService.AddNode")
	defer span.End()

	if err := node.Validate(); err != nil {
		return err
	}

	node.IsActive = true

	if err := s.nodes.Create(ctx, node); err != nil {
		if errors.Is(err, repository.ErrNodeAlreadyExists) {
			return apperror.NewWithField(apperror.CodeConflict,
				fmt.Sprintf("node %q already exists", node.NodeID), "node_id")
		}
		return apperror.Wrap(err, apperror.CodeStoreFailure, "failed to store node")
	}

	s.refreshTopologyGauges(ctx)

	logger.Log.Info("Node registered", "node_id", node.NodeID, "name", node.Name)
	return nil
}

// AddEdge регистрирует участок дороги между двумя известными узлами
func (s *TopologyService) AddEdge(ctx context.Context, edge *domain.Edge) error {
	ctx, span := telemetry.StartSpan(ctx, "TopologyService.AddEdge")
	defer span.End()

	if err := edge.Validate(); err != nil {
		return err
	}

	for field, nodeID := range map[string]string{
		"in_node_id":  edge.InNodeID,
		"out_node_id": edge.OutNodeID,
	} {
		if _, err := s.nodes.Get(ctx, nodeID); err != nil {
			if errors.Is(err, repository.ErrNodeNotFound) {
				return apperror.NewWithField(apperror.CodeNotFound,
					fmt.Sprintf("node %q does not exist", nodeID), field)
			}
			return apperror.Wrap(err, apperror.CodeStoreFailure, "failed to verify edge nodes")
		}
	}

	edge.IsActive = true

	if err := s.edges.Create(ctx, edge); err != nil {
		if errors.Is(err, repository.ErrEdgeAlreadyExists) {
			return apperror.NewWithField(apperror.CodeConflict,
				fmt.Sprintf("edge %q already exists", edge.EdgeID), "edge_id")
		}
		return apperror.Wrap(err, apperror.CodeStoreFailure, "failed to store edge")
	}

	s.refreshTopologyGauges(ctx)

	logger.Log.Info("Edge registered",
		"edge_id", edge.EdgeID,
		"out_node_id", edge.OutNodeID,
		"in_node_id", edge.InNodeID,
	)
	return nil
}

// UpdateTraffic накладывает патч метрик на слот ребра, который пишет данный
// узел: голова ребра пишет outgoing, хвост пишет incoming
func (s *TopologyService) UpdateTraffic(ctx context.Context, edgeID, nodeID string, patch *domain.MetricsPatch, now int64) (domain.Direction, error) {
	ctx, span := telemetry.StartSpan(ctx, "TopologyService.UpdateTraffic")
	defer span.End()

	if err := patch.Validate(); err != nil {
		return "", err
	}

	edge, err := s.edges.Get(ctx, edgeID)
	if err != nil {
		if errors.Is(err, repository.ErrEdgeNotFound) {
			return "", apperror.NewWithField(apperror.CodeNotFound,
				fmt.Sprintf("edge %q does not exist", edgeID), "edge_id")
		}
		return "", apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load edge")
	}

	direction, ok := edge.DirectionFor(nodeID)
	if !ok {
		return "", apperror.NewWithField(apperror.CodeNotConnected,
			fmt.Sprintf("node %q is not an endpoint of edge %q", nodeID, edgeID), "node_id")
	}

	updated, err := s.edges.UpdateMetrics(ctx, edgeID, direction, patch, now)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeStoreFailure, "failed to persist metrics")
	}

	slot := updated.Metrics(direction)
	metrics.Get().RecordEdgeMetrics(edgeID, string(direction), slot.QueueLengthM, slot.Pressure)

	logger.Log.Debug("Traffic metrics updated",
		"edge_id", edgeID,
		"node_id", nodeID,
		"direction", direction,
	)
	return direction, nil
}

// GetNode возвращает узел по идентификатору
func (s *TopologyService) GetNode(ctx context.Context, nodeID string) (*domain.Node, error) {
	node, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return nil, apperror.NewWithField(apperror.CodeNotFound,
				fmt.Sprintf("node %q does not exist", nodeID), "node_id")
		}
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load node")
	}
	return node, nil
}

// GetEdge возвращает ребро по идентификатору
func (s *TopologyService) GetEdge(ctx context.Context, edgeID string) (*domain.Edge, error) {
	edge, err := s.edges.Get(ctx, edgeID)
	if err != nil {
		if errors.Is(err, repository.ErrEdgeNotFound) {
			return nil, apperror.NewWithField(apperror.CodeNotFound,
				fmt.Sprintf("edge %q does not exist", edgeID), "edge_id")
		}
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load edge")
	}
	return edge, nil
}

// ListEdges возвращает все рёбра графа
func (s *TopologyService) ListEdges(ctx context.Context) ([]*domain.Edge, error) {
	edges, err := s.edges.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to list edges")
	}
	return edges, nil
}

// ListNodes возвращает все узлы графа
func (s *TopologyService) ListNodes(ctx context.Context) ([]*domain.Node, error) {
	nodes, err := s.nodes.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to list nodes")
	}
	return nodes, nil
}

func (s *TopologyService) refreshTopologyGauges(ctx context.Context) {
	nodes, err := s.nodes.List(ctx)
	if err != nil {
		return
	}
	edges, err := s.edges.List(ctx)
	if err != nil {
		return
	}
	metrics.Get().SetTopologySize(len(nodes), len(edges))
}
