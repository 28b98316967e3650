// Package ports declares the interfaces that wire the crawler's components
// together, so the dispatcher and the HTTP status surface depend on
// behaviour rather than on concrete adapter packages.
package ports

import (
	"context"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
)

// ProxyPool hands out outbound relays and tracks their health.
type ProxyPool interface {
	Get(ctx context.Context) (*domain.Proxy, error)
	MarkInvalid(p *domain.Proxy, reason string)
	MarkBanned(p *domain.Proxy)
	RateLimit(p *domain.Proxy)
	Start(ctx context.Context)
	Stop()
	Stats() ProxyPoolStats
}

// ProxyPoolStats is a point-in-time snapshot for the /stats surface.
type ProxyPoolStats struct {
	Total     int
	Available int
	Cooling   int
	Invalid   int
}

// ProxySource fetches a fresh batch of proxies from one configured origin.
type ProxySource interface {
	Fetch(ctx context.Context) ([]*domain.Proxy, error)
}

// HTTPClient fetches a JSON envelope from the upstream API, retrying across
// proxies per the documented outcome table.
type HTTPClient interface {
	GetJSON(ctx context.Context, url string, query map[string]string) (map[string]interface{}, error)
}

// IdPool is the three-set frontier of identifiers awaiting, in-flight, or
// resolved processing.
type IdPool interface {
	Offer(ids []int64)
	Pop(ctx context.Context) (int64, error)
	MarkDone(id int64)
	MarkFailed(id int64)
	Start(ctx context.Context) error
	Stop() error
	Stats() IdPoolStats
}

// IdPoolStats is a point-in-time snapshot for the /stats surface.
type IdPoolStats struct {
	ToProcess int
	Processed int
	Failed    int
}

// RecordAssembler builds a CompositeRecord for one identifier, and discovers
// its social neighbors independently of whether assembly itself succeeds.
type RecordAssembler interface {
	Assemble(ctx context.Context, id int64) (*domain.CompositeRecord, error)
	Followings(ctx context.Context, id int64) ([]int64, error)
}

// Sink durably appends one assembled record.
type Sink interface {
	Append(rec *domain.CompositeRecord) error
	Close() error
}
