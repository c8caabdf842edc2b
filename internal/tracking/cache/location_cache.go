// Кэш последних известных точек автобусов.
//
// Одна запись на рейс, last-write-wins: каждая новая точка водителя
// перезаписывает предыдущую, истории нет. Свежесть отслеживается по
// серверному времени записи — клиентским timestamp'ам не доверяем.
package cache

import (
	"sync"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// LocationCache — потокобезопасный кэш operationID → последняя точка.
type LocationCache struct {
	entries sync.Map // operationID → domain.LocationCacheEntry
}

// NewLocationCache создает пустой кэш
func NewLocationCache() *LocationCache {
	return &LocationCache{}
}

// Put записывает точку рейса (last-write-wins).
// Внеочередная доставка по сети может перезаписать более новую точку
// старой — это принятое приближение: GPS приходит часто, и следующая
// точка все исправит.
func (c *LocationCache) Put(sample domain.DriverLocationSample, receivedAt time.Time) {
	c.entries.Store(sample.OperationID, domain.LocationCacheEntry{
		Sample:     sample,
		ReceivedAt: receivedAt,
	})
}

// Get возвращает последнюю точку рейса, ok=false если записи нет
func (c *LocationCache) Get(operationID string) (domain.LocationCacheEntry, bool) {
	v, ok := c.entries.Load(operationID)
	if !ok {
		return domain.LocationCacheEntry{}, false
	}
	return v.(domain.LocationCacheEntry), true
}

// Evict явно удаляет запись рейса (вызывается при завершении рейса)
func (c *LocationCache) Evict(operationID string) {
	c.entries.Delete(operationID)
}

// SnapshotByOrganization возвращает копию всех записей организации.
// Используется движком обнаружения посадки для поиска ближайшего автобуса.
func (c *LocationCache) SnapshotByOrganization(organizationID string) map[string]domain.LocationCacheEntry {
	out := make(map[string]domain.LocationCacheEntry)
	c.entries.Range(func(key, value any) bool {
		entry := value.(domain.LocationCacheEntry)
		if entry.Sample.OrganizationID == organizationID {
			out[key.(string)] = entry
		}
		return true
	})
	return out
}

// EvictExpired удаляет записи старше ttl, возвращает число удаленных.
// Приложение водителя считается отключившимся.
func (c *LocationCache) EvictExpired(ttl time.Duration, now time.Time) int {
	evicted := 0
	c.entries.Range(func(key, value any) bool {
		entry := value.(domain.LocationCacheEntry)
		if now.Sub(entry.ReceivedAt) > ttl {
			c.entries.Delete(key)
			evicted++
		}
		return true
	})
	return evicted
}

// Len возвращает число записей в кэше
func (c *LocationCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
