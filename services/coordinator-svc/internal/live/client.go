package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Предел на запись одного сообщения подписчику
	writeWait = 5 * time.Second
	// Ожидание pong от подписчика
	pongWait = 60 * time.Second
	// Период ping; должен быть меньше pongWait
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер входящего сообщения
	maxMessageSize = 512
)

// client одно websocket-соединение подписчика
type client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, 16),
	}
}

// close закрывает очередь отправки; writePump дошлёт close-фрейм
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// writePump переливает события из очереди в соединение и пингует подписчика
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // соединение закрывается навсегда
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // ошибку отдаст WriteMessage
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck // соединение уже закрывается
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // ошибку отдаст WriteMessage
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump вычитывает входящие фреймы ради pong-ов и обнаружения разрыва.
// Содержимое сообщений подписчиков игнорируется: канал односторонний.
func (c *client) readPump(onClose func()) {
	defer onClose()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // разрыв обнаружит ReadMessage
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
