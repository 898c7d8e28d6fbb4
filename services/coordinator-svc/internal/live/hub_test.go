package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close() //nolint:errcheck // тестовое соединение
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // тестовое соединение
	return conn
}

func TestHub_BroadcastMetrics(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.PublishMetrics("e1", "n1", domain.DirectionOutgoing, &domain.TrafficMetrics{
		TotalVehicles: 7,
		QueueLengthM:  21,
		Pressure:      0.4,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(message, &event))
	assert.Equal(t, EventMetricsUpdated, event.Type)

	payload, err := json.Marshal(event.Payload)
	require.NoError(t, err)
	var metrics MetricsPayload
	require.NoError(t, json.Unmarshal(payload, &metrics))
	assert.Equal(t, "e1", metrics.EdgeID)
	assert.Equal(t, "outgoing", metrics.Direction)
	assert.Equal(t, 7, metrics.Metrics.TotalVehicles)
}

func TestHub_BroadcastGreenToAllSubscribers(t *testing.T) {
	hub, url := startHub(t)
	first := dial(t, url)
	second := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	hub.PublishGreen("n1", map[string]int{"e1": 40, "e2": 8})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, message, err := conn.ReadMessage()
		require.NoError(t, err)

		var event Event
		require.NoError(t, json.Unmarshal(message, &event))
		assert.Equal(t, EventGreenAllocated, event.Type)
	}
}

func TestHub_SubscriberDisconnect(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub, _ := startHub(t)

	// Событие без подписчиков просто уходит в пустоту
	hub.PublishGreen("n1", map[string]int{"e1": 20})
	assert.Zero(t, hub.ClientCount())
}
