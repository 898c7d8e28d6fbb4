package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// EventType тип события трансляции
type EventType string

const (
	// EventMetricsUpdated метрики направления ребра обновлены
	EventMetricsUpdated EventType = "metrics_updated"
	// EventGreenAllocated узлу выдано распределение зелёного времени
	EventGreenAllocated EventType = "green_allocated"
)

// Event сообщение, рассылаемое подписчикам
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// MetricsPayload содержимое события metrics_updated
type MetricsPayload struct {
	EdgeID    string                 `json:"edge_id"`
	NodeID    string                 `json:"node_id"`
	Direction string                 `json:"direction"`
	Metrics   *domain.TrafficMetrics `json:"metrics"`
}

// GreenPayload содержимое события green_allocated
type GreenPayload struct {
	NodeID     string         `json:"node_id"`
	GreenTimes map[string]int `json:"green_times"`
}

// Hub рассылает события всем подключённым подписчикам панели.
// Медленный подписчик не тормозит остальных: при переполнении его
// очереди соединение закрывается.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	clientCount atomic.Int64
}

// NewHub создаёт трансляционный хаб
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
	}
}

// Run крутит цикл рассылки до отмены контекста
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})

	defer func() {
		for c := range clients {
			c.close()
		}
		h.clientCount.Store(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			h.clientCount.Store(int64(len(clients)))

		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				c.close()
				h.clientCount.Store(int64(len(clients)))
			}

		case message := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- message:
				default:
					// Очередь подписчика переполнена
					delete(clients, c)
					c.close()
					h.clientCount.Store(int64(len(clients)))
				}
			}
		}
	}
}

// Publish ставит событие в очередь рассылки. Никогда не блокирует:
// при переполненной очереди событие отбрасывается.
func (h *Hub) Publish(eventType EventType, payload any) {
	message, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		logger.Log.Warn("Failed to encode live event", "type", eventType, "error", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		logger.Log.Warn("Live feed backlog full, event dropped", "type", eventType)
	}
}

// PublishMetrics транслирует обновление метрик направления ребра
func (h *Hub) PublishMetrics(edgeID, nodeID string, direction domain.Direction, m *domain.TrafficMetrics) {
	h.Publish(EventMetricsUpdated, MetricsPayload{
		EdgeID:    edgeID,
		NodeID:    nodeID,
		Direction: string(direction),
		Metrics:   m,
	})
}

// PublishGreen транслирует выданное распределение зелёного времени
func (h *Hub) PublishGreen(nodeID string, greenTimes map[string]int) {
	h.Publish(EventGreenAllocated, GreenPayload{
		NodeID:     nodeID,
		GreenTimes: greenTimes,
	})
}

// ClientCount возвращает число активных подписчиков
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Панель обслуживается с другого origin-а; доступ ограничивает
	// общий CORS/auth слой, а не рукопожатие
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler апгрейдит соединение и подписывает клиента на события
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		c := newClient(conn)
		h.register <- c

		go c.writePump()
		go c.readPump(func() { h.unregister <- c })

		logger.Log.Debug("Live feed subscriber connected", "remote", r.RemoteAddr)
	}
}
