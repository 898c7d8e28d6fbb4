package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// stubCoordinator управляемый клиент координатора
type stubCoordinator struct {
	greenTimes map[string]int
	greenErr   error
	greenCalls int
	lastImages map[string][]byte

	table      domain.RoutingTable
	tableErr   error
	tableCalls int
}

func (s *stubCoordinator) CalculateGreen(_ context.Context, _ string, images map[string][]byte) (*domain.GreenTimesResponse, error) {
	s.greenCalls++
	s.lastImages = images
	if s.greenErr != nil {
		return nil, s.greenErr
	}
	return &domain.GreenTimesResponse{GreenTimes: s.greenTimes}, nil
}

func (s *stubCoordinator) GetRoutingTable(_ context.Context, nodeID string) (*domain.RoutingTableResponse, error) {
	s.tableCalls++
	if s.tableErr != nil {
		return nil, s.tableErr
	}
	return &domain.RoutingTableResponse{NodeID: nodeID, RoutingTable: s.table}, nil
}

// memCamera отдаёт кадры из памяти
type memCamera struct {
	frames map[string][]byte
}

func (c *memCamera) Capture(edgeID string) ([]byte, error) {
	frame, ok := c.frames[edgeID]
	if !ok {
		return nil, errors.New("no frame")
	}
	return frame, nil
}

func (c *memCamera) Edges() []string {
	ids := make([]string, 0, len(c.frames))
	for id := range c.frames {
		ids = append(ids, id)
	}
	return ids
}

func schedulerFixture(coord *stubCoordinator) (*Scheduler, *TableCache) {
	cache := NewTableCache()
	camera := &memCamera{frames: map[string][]byte{
		"e1": []byte("frame-1"),
		"e2": []byte("frame-2"),
	}}
	s := NewScheduler(SchedulerConfig{
		NodeID:          "a",
		Tick:            time.Second,
		RecomputeBefore: 10 * time.Second,
	}, coord, camera, cache)
	return s, cache
}

func TestScheduler_InitialRecompute(t *testing.T) {
	coord := &stubCoordinator{
		greenTimes: map[string]int{"e2": 20, "e1": 30},
		table:      domain.RoutingTable{"d": {{NextHop: "b", Probability: 1}}},
	}
	s, cache := schedulerFixture(coord)

	base := time.Now()
	s.now = func() time.Time { return base }
	s.step(context.Background())

	require.Equal(t, 1, coord.greenCalls)
	assert.Len(t, coord.lastImages, 2)

	// Фазы упорядочены по ребру, отсчёт с нулевой
	phase, ok := s.CurrentPhase()
	require.True(t, ok)
	assert.Equal(t, "e1", phase.EdgeID)
	assert.Equal(t, 30*time.Second, phase.Green)
	assert.Equal(t, base.Add(30*time.Second), s.phaseEnd)

	// Пересчёт подтянул таблицу маршрутизации
	assert.Equal(t, 1, coord.tableCalls)
	next, found := cache.NextHop("d", 0.5)
	require.True(t, found)
	assert.Equal(t, "b", next)
}

func TestScheduler_RecomputeWindow(t *testing.T) {
	coord := &stubCoordinator{greenTimes: map[string]int{"e1": 30, "e2": 20}}
	s, _ := schedulerFixture(coord)

	base := time.Now()
	s.now = func() time.Time { return base }
	s.step(context.Background())
	require.Equal(t, 1, coord.greenCalls)

	// До окна упреждения далеко: тик ничего не делает
	s.now = func() time.Time { return base.Add(5 * time.Second) }
	s.step(context.Background())
	assert.Equal(t, 1, coord.greenCalls)
	assert.Equal(t, 0, s.current)

	// phase_end - now == 10s: окно достигнуто, расписание заменяется с фазы 0
	coord.greenTimes = map[string]int{"e1": 12, "e2": 40}
	s.now = func() time.Time { return base.Add(20 * time.Second) }
	s.step(context.Background())
	assert.Equal(t, 2, coord.greenCalls)

	phase, ok := s.CurrentPhase()
	require.True(t, ok)
	assert.Equal(t, "e1", phase.EdgeID)
	assert.Equal(t, 12*time.Second, phase.Green)
}

func TestScheduler_RotationWhenRecomputeFails(t *testing.T) {
	coord := &stubCoordinator{greenTimes: map[string]int{"e1": 30, "e2": 20}}
	s, _ := schedulerFixture(coord)

	base := time.Now()
	s.now = func() time.Time { return base }
	s.step(context.Background())
	require.Equal(t, 1, coord.greenCalls)

	// Координатор недоступен: на границе фазы агент ротирует по кругу
	coord.greenErr = errors.New("coordinator down")

	s.now = func() time.Time { return base.Add(30 * time.Second) }
	s.step(context.Background())
	assert.Equal(t, 1, s.current)

	phase, _ := s.CurrentPhase()
	assert.Equal(t, "e2", phase.EdgeID)

	// Следующая граница: возврат к первой фазе
	s.now = func() time.Time { return base.Add(50 * time.Second) }
	s.step(context.Background())
	assert.Equal(t, 0, s.current)
}

func TestSampleHop(t *testing.T) {
	hops := []domain.HopProbability{
		{NextHop: "a", Probability: 0.5},
		{NextHop: "b", Probability: 0.3},
		{NextHop: "c", Probability: 0.2},
	}

	tests := []struct {
		roll float64
		want string
	}{
		{0.0, "a"},
		{0.49, "a"},
		{0.5, "b"},
		{0.79, "b"},
		{0.8, "c"},
		{0.99, "c"},
		// Округление вероятностей не должно ронять выбор
		{1.0, "c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sampleHop(hops, tt.roll), "roll %v", tt.roll)
	}
}

func TestTableCache_Swap(t *testing.T) {
	cache := NewTableCache()

	_, ok := cache.NextHop("d", 0.1)
	assert.False(t, ok)

	cache.Replace(domain.RoutingTable{
		"d": {{NextHop: "b", Probability: 1}},
	})
	next, ok := cache.NextHop("d", 0.1)
	require.True(t, ok)
	assert.Equal(t, "b", next)

	// Подмена таблицы целиком: старых направлений больше нет
	cache.Replace(domain.RoutingTable{
		"z": {{NextHop: "c", Probability: 1}},
	})
	_, ok = cache.NextHop("d", 0.1)
	assert.False(t, ok)

	// nil эквивалентен пустой таблице
	cache.Replace(nil)
	assert.Empty(t, cache.Snapshot())
}

func exchange(t *testing.T, r *Responder, payload string) domain.NextEdgeResponse {
	t.Helper()

	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		r.handle(server)
		close(done)
	}()

	_, err := client.Write([]byte(payload))
	require.NoError(t, err)

	var resp domain.NextEdgeResponse
	require.NoError(t, json.NewDecoder(client).Decode(&resp))
	client.Close() //nolint:errcheck
	<-done
	return resp
}

func TestResponder(t *testing.T) {
	cache := NewTableCache()
	cache.Replace(domain.RoutingTable{
		"d": {
			{NextHop: "b", Probability: 0.7},
			{NextHop: "c", Probability: 0.3},
		},
	})

	rolls := []float64{0.1, 0.9}
	idx := 0
	r := NewResponder(":0", cache, func() float64 {
		roll := rolls[idx%len(rolls)]
		idx++
		return roll
	})

	resp := exchange(t, r, `{"type":"NEXT_EDGE","car_id":"car-1","destination":"d"}`)
	assert.Equal(t, "b", resp.NextEdge)

	resp = exchange(t, r, `{"type":"NEXT_EDGE","car_id":"car-1","destination":"d"}`)
	assert.Equal(t, "c", resp.NextEdge)

	// Неизвестное направление
	resp = exchange(t, r, `{"type":"NEXT_EDGE","car_id":"car-1","destination":"ghost"}`)
	assert.Equal(t, domain.ErrNoRouteReply, resp.Error)

	// Чужой тип запроса
	resp = exchange(t, r, `{"type":"PING"}`)
	assert.Equal(t, "unsupported request type", resp.Error)

	// Мусор вместо JSON
	resp = exchange(t, r, `{{{`)
	assert.Equal(t, "malformed request", resp.Error)
}

func TestResponder_ReplyIsSingleNewlineFreeMessage(t *testing.T) {
	cache := NewTableCache()
	cache.Replace(domain.RoutingTable{
		"d": {{NextHop: "b", Probability: 1}},
	})
	r := NewResponder(":0", cache, func() float64 { return 0 })

	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		r.handle(server)
		close(done)
	}()

	_, err := client.Write([]byte(`{"type":"NEXT_EDGE","car_id":"car-1","destination":"d"}`))
	require.NoError(t, err)

	raw, err := io.ReadAll(client)
	require.NoError(t, err)
	<-done

	// Ровно одно JSON-сообщение, без завершающего перевода строки
	assert.Equal(t, `{"next_edge":"b"}`, string(raw))
}

func TestAgent_BootstrapCancelled(t *testing.T) {
	coord := &stubCoordinator{tableErr: errors.New("coordinator down")}
	a := &Agent{nodeID: "a", client: coord, cache: NewTableCache()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.bootstrapTable(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAgent_BootstrapLoadsTable(t *testing.T) {
	coord := &stubCoordinator{
		table: domain.RoutingTable{"d": {{NextHop: "b", Probability: 1}}},
	}
	a := &Agent{nodeID: "a", client: coord, cache: NewTableCache()}

	require.NoError(t, a.bootstrapTable(context.Background()))
	assert.Len(t, a.cache.Snapshot(), 1)
}
