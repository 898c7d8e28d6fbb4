package agent

import (
	"sync/atomic"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// TableCache локальная копия таблицы маршрутизации узла. Обновление
// подменяет всю таблицу атомарно: читатели всегда видят целостный снимок.
type TableCache struct {
	table atomic.Pointer[domain.RoutingTable]
}

// NewTableCache создаёт пустой кэш
func NewTableCache() *TableCache {
	c := &TableCache{}
	empty := domain.RoutingTable{}
	c.table.Store(&empty)
	return c
}

// Replace подменяет таблицу целиком
func (c *TableCache) Replace(table domain.RoutingTable) {
	if table == nil {
		table = domain.RoutingTable{}
	}
	c.table.Store(&table)
}

// Snapshot возвращает текущую таблицу. Снимок только для чтения.
func (c *TableCache) Snapshot() domain.RoutingTable {
	return *c.table.Load()
}

// NextHop выбирает следующий переход к destination. Выбор взвешен
// вероятностями таблицы; roll — случайное число из [0, 1).
func (c *TableCache) NextHop(destination string, roll float64) (string, bool) {
	hops := c.Snapshot()[destination]
	if len(hops) == 0 {
		return "", false
	}
	return sampleHop(hops, roll), true
}

// sampleHop выбирает вариант по кумулятивным вероятностям. Если сумма
// вероятностей из-за округления меньше roll, достаётся последний вариант.
func sampleHop(hops []domain.HopProbability, roll float64) string {
	var cum float64
	for _, h := range hops {
		cum += h.Probability
		if roll < cum {
			return h.NextHop
		}
	}
	return hops[len(hops)-1].NextHop
}
