// Command seed loads a road topology described in YAML into a running
// coordinator: nodes first, then edges, then optionally drives the
// distance-vector exchange until the table converges.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/client"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// Topology is the YAML input format.
type Topology struct {
	Nodes []NodeSpec `yaml:"nodes"`
	Edges []EdgeSpec `yaml:"edges"`
}

// NodeSpec describes one intersection.
type NodeSpec struct {
	NodeID    string   `yaml:"node_id"`
	Name      string   `yaml:"name"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

// EdgeSpec describes one road segment.
type EdgeSpec struct {
	EdgeID      string  `yaml:"edge_id"`
	Name        string  `yaml:"name"`
	OutNodeID   string  `yaml:"out_node_id"`
	InNodeID    string  `yaml:"in_node_id"`
	CameraID    string  `yaml:"camera_id"`
	RoadLengthM float64 `yaml:"road_length_m"`
	RoadWidthM  float64 `yaml:"road_width_m"`
}

func main() {
	topologyPath := flag.String("topology", "topology.yaml", "topology file")
	baseURL := flag.String("coordinator", "http://localhost:8080", "coordinator base URL")
	converge := flag.Bool("converge", false, "run DV iterations until no changes")
	maxIterations := flag.Int("max-iterations", 50, "DV iteration cap for -converge")
	flag.Parse()

	logger.Init("warn")

	topo, err := loadTopology(*topologyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	coordinator := client.NewCoordinator(&client.Config{
		BaseURL:      *baseURL,
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	})

	ctx := context.Background()
	if err := seed(ctx, coordinator, topo); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	if *converge {
		if err := convergeDV(ctx, coordinator, *maxIterations); err != nil {
			fmt.Fprintf(os.Stderr, "seed: %v\n", err)
			os.Exit(1)
		}
	}
}

func loadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology: %w", err)
	}

	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if len(topo.Nodes) == 0 {
		return nil, fmt.Errorf("topology has no nodes")
	}
	return &topo, nil
}

// seed posts nodes then edges. Already-existing entities are skipped,
// so re-running against a seeded coordinator is harmless.
func seed(ctx context.Context, coordinator *client.Coordinator, topo *Topology) error {
	created, skipped := 0, 0

	for _, spec := range topo.Nodes {
		node := &domain.Node{NodeID: spec.NodeID, Name: spec.Name}
		if spec.Latitude != nil && spec.Longitude != nil {
			node.Location = &domain.Location{Latitude: *spec.Latitude, Longitude: *spec.Longitude}
		}

		err := coordinator.CreateNode(ctx, node)
		switch {
		case err == nil:
			created++
		case apperror.Is(err, apperror.CodeConflict):
			skipped++
		default:
			return fmt.Errorf("node %q: %w", spec.NodeID, err)
		}
	}
	fmt.Printf("Nodes: %d created, %d already present\n", created, skipped)

	created, skipped = 0, 0
	for _, spec := range topo.Edges {
		err := coordinator.CreateEdge(ctx, &domain.Edge{
			EdgeID:      spec.EdgeID,
			Name:        spec.Name,
			OutNodeID:   spec.OutNodeID,
			InNodeID:    spec.InNodeID,
			CameraID:    spec.CameraID,
			RoadLengthM: spec.RoadLengthM,
			RoadWidthM:  spec.RoadWidthM,
		})
		switch {
		case err == nil:
			created++
		case apperror.Is(err, apperror.CodeConflict):
			skipped++
		default:
			return fmt.Errorf("edge %q: %w", spec.EdgeID, err)
		}
	}
	fmt.Printf("Edges: %d created, %d already present\n", created, skipped)
	return nil
}

// convergeDV triggers DV iterations until the change count drops to zero.
func convergeDV(ctx context.Context, coordinator *client.Coordinator, maxIterations int) error {
	for i := 1; i <= maxIterations; i++ {
		applied, err := coordinator.TriggerDVUpdate(ctx)
		if err != nil {
			return fmt.Errorf("dv iteration %d: %w", i, err)
		}
		fmt.Printf("DV iteration %d: %d updates\n", i, applied)
		if applied == 0 {
			fmt.Println("Routing table converged")
			return nil
		}
	}
	return fmt.Errorf("routing table did not converge in %d iterations", maxIterations)
}
