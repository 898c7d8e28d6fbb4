package handlers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/client"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// Полный цикл через pkg/client: тот же путь, которым ходят узловые
// агенты и скрипты заливки топологии.
func TestCoordinatorClientRoundTrip(t *testing.T) {
	h, _ := newTestHandlers(t)

	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)

	coordinator := client.NewCoordinator(&client.Config{
		BaseURL:      ts.URL,
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 10 * time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, coordinator.Health(ctx))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, coordinator.CreateNode(ctx, &domain.Node{
			NodeID: id, Name: "intersection " + id,
		}))
	}
	err := coordinator.CreateNode(ctx, &domain.Node{NodeID: "a", Name: "dup"})
	assert.True(t, apperror.Is(err, apperror.CodeConflict), "duplicate node: %v", err)

	for _, e := range []*domain.Edge{
		{EdgeID: "ab", Name: "a to b", OutNodeID: "a", InNodeID: "b",
			CameraID: "cam-ab", RoadLengthM: 200, RoadWidthM: 7},
		{EdgeID: "bc", Name: "b to c", OutNodeID: "b", InNodeID: "c",
			CameraID: "cam-bc", RoadLengthM: 200, RoadWidthM: 7},
	} {
		require.NoError(t, coordinator.CreateEdge(ctx, e))
	}

	queue := 30.0
	require.NoError(t, coordinator.UpdateTraffic(ctx, "ab", "a", &domain.MetricsPatch{
		QueueLengthM: &queue,
	}))

	// Обмен DV до сходимости
	converged := false
	for i := 0; i < 20; i++ {
		applied, err := coordinator.TriggerDVUpdate(ctx)
		require.NoError(t, err)
		if applied == 0 {
			converged = true
			break
		}
	}
	assert.True(t, converged, "DV exchange did not converge")

	table, err := coordinator.GetRoutingTable(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", table.NodeID)
	require.NotEmpty(t, table.RoutingTable)
	for dest, hops := range table.RoutingTable {
		sum := 0.0
		for _, hop := range hops {
			sum += hop.Probability
		}
		assert.InDelta(t, 1.0, sum, domain.ProbabilitySumTolerance,
			"probabilities for %s must sum to 1", dest)
	}

	_, err = coordinator.GetRoutingTable(ctx, "ghost")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound), "ghost node: %v", err)

	green, err := coordinator.CalculateGreen(ctx, "a", map[string][]byte{
		"ab": []byte("frame-ab"),
	})
	require.NoError(t, err)
	assert.Contains(t, green.GreenTimes, "ab")

	require.NoError(t, coordinator.AddRoutingEntry(ctx, "b", "a", "a", 4.2))
	err = coordinator.AddRoutingEntry(ctx, "b", "a", "a", 4.2)
	assert.True(t, apperror.Is(err, apperror.CodeConflict), "duplicate entry: %v", err)
}
