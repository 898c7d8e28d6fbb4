package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// RoutingCache специализированный кэш стохастических таблиц маршрутизации.
// Таблица пересчитывается из DV-состояния при каждом запросе, поэтому
// горячие узлы выгодно держать в кэше между итерациями обмена.
type RoutingCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// CachedRoutingTable кэшированная таблица с меткой генерации
type CachedRoutingTable struct {
	NodeID      string              `json:"node_id"`
	Table       domain.RoutingTable `json:"table"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// NewRoutingCache создаёт кэш таблиц маршрутизации
func NewRoutingCache(cache Cache, defaultTTL time.Duration) *RoutingCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	return &RoutingCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Get получает кэшированную таблицу узла
func (rc *RoutingCache) Get(ctx context.Context, nodeID string) (*CachedRoutingTable, bool, error) {
	key := BuildRoutingKey(nodeID)

	data, err := rc.cache.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cached CachedRoutingTable
	if err := json.Unmarshal(data, &cached); err != nil {
		// Повреждённый кэш — удаляем, ошибку удаления игнорируем намеренно
		_ = rc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	return &cached, true, nil
}

// Set сохраняет таблицу узла в кэш
func (rc *RoutingCache) Set(ctx context.Context, nodeID string, table domain.RoutingTable, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	cached := CachedRoutingTable{
		NodeID:      nodeID,
		Table:       table,
		GeneratedAt: time.Now(),
	}

	data, err := json.Marshal(&cached)
	if err != nil {
		return err
	}

	return rc.cache.Set(ctx, BuildRoutingKey(nodeID), data, ttl)
}

// Invalidate удаляет кэшированную таблицу одного узла
func (rc *RoutingCache) Invalidate(ctx context.Context, nodeID string) error {
	return rc.cache.Delete(ctx, BuildRoutingKey(nodeID))
}

// InvalidateAll удаляет все кэшированные таблицы.
// Вызывается после DV-итерации и после ручной записи маршрутной записи.
func (rc *RoutingCache) InvalidateAll(ctx context.Context) (int64, error) {
	return rc.cache.DeleteByPattern(ctx, "routes:*")
}
