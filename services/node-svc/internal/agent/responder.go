package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/metrics"
)

// readTimeout предел ожидания запроса машины
const readTimeout = 5 * time.Second

// Responder TCP-ответчик для машин: одно соединение — один обмен.
// Запрос NEXT_EDGE с направлением, ответ — следующее ребро либо NO_ROUTE.
type Responder struct {
	addr  string
	cache *TableCache

	mu  sync.Mutex
	rng func() float64
}

// NewResponder создаёт ответчик. rng отдаёт числа из [0, 1);
// в тестах подменяется детерминированным источником.
func NewResponder(addr string, cache *TableCache, rng func() float64) *Responder {
	return &Responder{
		addr:  addr,
		cache: cache,
		rng:   rng,
	}
}

// Run слушает адрес до отмены контекста
func (r *Responder) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", r.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		listener.Close() //nolint:errcheck // shutdown path
	}()

	logger.Log.Info("Vehicle responder listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Log.Warn("Accept failed", "error", err)
			continue
		}
		go r.handle(conn)
	}
}

// Addr адрес, переданный ответчику
func (r *Responder) Addr() string {
	return r.addr
}

func (r *Responder) roll() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng()
}

// handle обслуживает один обмен и закрывает соединение
func (r *Responder) handle(conn net.Conn) {
	defer conn.Close() //nolint:errcheck // single exchange

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return
	}

	var req domain.NextEdgeRequest
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		r.reply(conn, domain.NextEdgeResponse{Error: "malformed request"})
		return
	}

	if req.Type != domain.MessageTypeNextEdge {
		r.reply(conn, domain.NextEdgeResponse{Error: "unsupported request type"})
		return
	}
	if req.Destination == "" {
		r.reply(conn, domain.NextEdgeResponse{Error: "destination is required"})
		return
	}

	next, ok := r.cache.NextHop(req.Destination, r.roll())
	metrics.Get().RecordRouteLookup(ok)
	if !ok {
		r.reply(conn, domain.NextEdgeResponse{Error: domain.ErrNoRouteReply})
		return
	}

	logger.Log.Debug("Next hop served",
		"car_id", req.CarID,
		"destination", req.Destination,
		"next_edge", next,
	)
	r.reply(conn, domain.NextEdgeResponse{NextEdge: next})
}

// reply пишет ответ одним JSON-сообщением без завершающего перевода строки
func (r *Responder) reply(conn net.Conn, resp domain.NextEdgeResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Debug("Failed to encode vehicle reply", "error", err)
		return
	}
	if _, err := conn.Write(data); err != nil {
		logger.Log.Debug("Failed to write vehicle reply", "error", err)
	}
}
