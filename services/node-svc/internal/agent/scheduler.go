package agent

import (
	"context"
	"sort"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// coordinatorAPI часть клиента координатора, нужная планировщику
type coordinatorAPI interface {
	CalculateGreen(ctx context.Context, nodeID string, images map[string][]byte) (*domain.GreenTimesResponse, error)
	GetRoutingTable(ctx context.Context, nodeID string) (*domain.RoutingTableResponse, error)
}

// Phase одна фаза зелёного цикла
type Phase struct {
	EdgeID string
	Green  time.Duration
}

// Scheduler крутит цикл зелёных фаз перекрёстка. Незадолго до конца
// текущей фазы он снимает свежие кадры, запрашивает у координатора новое
// расписание и начинает его с нулевой фазы; пока расписания нет или
// пересчёт недоступен, фазы ротируются по кругу.
type Scheduler struct {
	nodeID          string
	client          coordinatorAPI
	camera          Camera
	cache           *TableCache
	tick            time.Duration
	recomputeBefore time.Duration
	now             func() time.Time

	schedule []Phase
	current  int
	phaseEnd time.Time
}

// SchedulerConfig параметры планировщика
type SchedulerConfig struct {
	NodeID          string
	Tick            time.Duration
	RecomputeBefore time.Duration
}

// NewScheduler создаёт планировщик фаз
func NewScheduler(cfg SchedulerConfig, client coordinatorAPI, camera Camera, cache *TableCache) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.RecomputeBefore <= 0 {
		cfg.RecomputeBefore = 10 * time.Second
	}
	return &Scheduler{
		nodeID:          cfg.NodeID,
		client:          client,
		camera:          camera,
		cache:           cache,
		tick:            cfg.Tick,
		recomputeBefore: cfg.RecomputeBefore,
		now:             time.Now,
	}
}

// CurrentPhase возвращает активную фазу; false, если расписания ещё нет
func (s *Scheduler) CurrentPhase() (Phase, bool) {
	if len(s.schedule) == 0 {
		return Phase{}, false
	}
	return s.schedule[s.current], true
}

// Run крутит цикл планирования до отмены контекста
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.step(ctx)
		}
	}
}

// step один тик планировщика: пересчёт в окне упреждения, иначе ротация
func (s *Scheduler) step(ctx context.Context) {
	now := s.now()

	if len(s.schedule) == 0 || s.phaseEnd.Sub(now) <= s.recomputeBefore {
		if s.recompute(ctx, now) {
			return
		}
	}

	// Пересчёт не состоялся: дорабатываем старое расписание по кругу
	if len(s.schedule) > 0 && !now.Before(s.phaseEnd) {
		s.current = (s.current + 1) % len(s.schedule)
		s.phaseEnd = now.Add(s.schedule[s.current].Green)
		logger.Log.Debug("Phase rotated",
			"node_id", s.nodeID,
			"edge_id", s.schedule[s.current].EdgeID,
			"phase", s.current,
		)
	}
}

// recompute запрашивает свежее расписание; возвращает true при успехе
func (s *Scheduler) recompute(ctx context.Context, now time.Time) bool {
	images := captureAll(s.camera)
	if len(images) == 0 {
		logger.Log.Warn("No camera frames available, keeping current schedule", "node_id", s.nodeID)
		return false
	}

	resp, err := s.client.CalculateGreen(ctx, s.nodeID, images)
	if err != nil {
		logger.Log.Error("Green recompute failed", "node_id", s.nodeID, "error", err)
		return false
	}
	if len(resp.GreenTimes) == 0 {
		logger.Log.Warn("Coordinator returned empty schedule", "node_id", s.nodeID)
		return false
	}

	s.schedule = buildSchedule(resp.GreenTimes)
	s.current = 0
	s.phaseEnd = now.Add(s.schedule[0].Green)

	logger.Log.Info("Green schedule replaced",
		"node_id", s.nodeID,
		"phases", len(s.schedule),
		"first_edge", s.schedule[0].EdgeID,
	)

	s.refreshTable(ctx)
	return true
}

// refreshTable обновляет локальную таблицу маршрутизации
func (s *Scheduler) refreshTable(ctx context.Context) {
	resp, err := s.client.GetRoutingTable(ctx, s.nodeID)
	if err != nil {
		logger.Log.Warn("Routing table refresh failed", "node_id", s.nodeID, "error", err)
		return
	}
	s.cache.Replace(resp.RoutingTable)
}

// buildSchedule упорядочивает фазы детерминированно по идентификатору ребра
func buildSchedule(greenTimes map[string]int) []Phase {
	ids := make([]string, 0, len(greenTimes))
	for id := range greenTimes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	phases := make([]Phase, 0, len(ids))
	for _, id := range ids {
		phases = append(phases, Phase{
			EdgeID: id,
			Green:  time.Duration(greenTimes[id]) * time.Second,
		})
	}
	return phases
}
