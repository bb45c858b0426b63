package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lifeline-ems/service-dispatch/internal/dto"
)

// cacheKeyPrecision rounds endpoints to ~1.1 m before keying, matching the
// polyline encoding's own quantization.
const cacheKeyPrecision = 1e5

// RouteProvider is the route computation contract the cache decorates.
type RouteProvider interface {
	ComputeRoute(ctx context.Context, originLat, originLng, destLat, destLng float64) (dto.RouteResponse, error)
}

// CachingRouteProvider wraps a RouteProvider with a Redis read-through
// cache. Cache failures degrade to the underlying provider; only successful
// routes are stored.
type CachingRouteProvider struct {
	inner  RouteProvider
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachingRouteProvider decorates inner with a Redis cache.
func NewCachingRouteProvider(inner RouteProvider, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachingRouteProvider {
	return &CachingRouteProvider{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

// ComputeRoute serves the leg from cache when possible, otherwise delegates
// and stores the result.
func (p *CachingRouteProvider) ComputeRoute(ctx context.Context, originLat, originLng, destLat, destLng float64) (dto.RouteResponse, error) {
	key := cacheKey(originLat, originLng, destLat, destLng)

	cached, err := p.rdb.Get(ctx, key).Result()
	if err == nil {
		var route dto.RouteResponse
		if err := json.Unmarshal([]byte(cached), &route); err == nil {
			return route, nil
		}
		p.logger.Warn("discarding corrupt cached route", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		p.logger.Warn("route cache read failed", zap.String("key", key), zap.Error(err))
	}

	route, err := p.inner.ComputeRoute(ctx, originLat, originLng, destLat, destLng)
	if err != nil {
		return route, err
	}

	if route.Status == dto.StatusSuccess && route.Geometry != "" {
		if payload, err := json.Marshal(route); err == nil {
			if err := p.rdb.Set(ctx, key, payload, p.ttl).Err(); err != nil {
				p.logger.Warn("route cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return route, nil
}

func cacheKey(originLat, originLng, destLat, destLng float64) string {
	return fmt.Sprintf("route:%d:%d:%d:%d",
		int64(math.Round(originLat*cacheKeyPrecision)),
		int64(math.Round(originLng*cacheKeyPrecision)),
		int64(math.Round(destLat*cacheKeyPrecision)),
		int64(math.Round(destLng*cacheKeyPrecision)),
	)
}
