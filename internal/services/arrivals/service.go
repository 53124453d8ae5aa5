package arrivals

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BearBump/busnoti/internal/cache"
	"github.com/BearBump/busnoti/internal/integrations/transit"
	"github.com/BearBump/busnoti/internal/models"
	"github.com/pkg/errors"
)

// Service маршрутизирует запросы в провайдер региона.
// Неизвестный регион уходит в провайдер по умолчанию: доступность важнее точности.
type Service struct {
	providers     map[models.Region]transit.Provider
	defaultRegion models.Region

	cache    cache.BytesCache
	cacheTTL time.Duration

	rl                 cache.RateLimiter
	rateLimitPerMinute int64
	rateLimitPause     time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(defaultRegion models.Region, providers ...transit.Provider) (*Service, error) {
	m := make(map[models.Region]transit.Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		m[p.Region()] = p
	}
	if _, ok := m[defaultRegion]; !ok {
		return nil, fmt.Errorf("no provider registered for default region %q", defaultRegion)
	}
	return &Service{
		providers:      m,
		defaultRegion:  defaultRegion,
		rateLimitPause: 500 * time.Millisecond,
		now:            time.Now,
		sleep:          sleepCtx,
	}, nil
}

// WithCache включает кэш прибытий по остановке. ttl<=0 выключает кэш.
func (s *Service) WithCache(c cache.BytesCache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

// WithRateLimit ограничивает число запросов прибытий к апстриму региона в минуту.
func (s *Service) WithRateLimit(rl cache.RateLimiter, perMinute int64) *Service {
	s.rl = rl
	s.rateLimitPerMinute = perMinute
	return s
}

func (s *Service) SupportedRegions() []models.Region {
	out := make([]models.Region, 0, len(s.providers))
	for r := range s.providers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Service) provider(region models.Region) transit.Provider {
	if p, ok := s.providers[region]; ok {
		return p
	}
	slog.Warn("no provider for region, falling back to default", "region", string(region), "default", string(s.defaultRegion))
	return s.providers[s.defaultRegion]
}

func (s *Service) GetArrivalsByStation(ctx context.Context, stationID string, region models.Region) []models.ArrivalInfo {
	p := s.provider(region)
	key := cacheKey(p.Region(), stationID)

	if cached, ok := s.fromCache(ctx, key); ok {
		return cached
	}

	s.throttle(ctx, p.Region())
	out := p.GetArrivalInfo(ctx, stationID)
	if out == nil {
		out = []models.ArrivalInfo{}
	}

	// пустой ответ не кэшируем: это может быть сбой апстрима
	if len(out) > 0 && s.cache != nil && s.cacheTTL > 0 {
		b, err := json.Marshal(out)
		if err == nil {
			if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
				slog.Warn("arrivals cache set", "key", key, "error", err.Error())
			}
		}
	}
	return out
}

// GetArrivalsByRoute фильтрует прибытия остановки по маршруту.
// id маршрута сравниваются как строки: апстримы отдают их то числом, то строкой.
func (s *Service) GetArrivalsByRoute(ctx context.Context, stationID, routeID string, region models.Region) []models.ArrivalInfo {
	all := s.GetArrivalsByStation(ctx, stationID, region)
	out := make([]models.ArrivalInfo, 0, len(all))
	for _, a := range all {
		if a.RouteID == routeID {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) SearchStations(ctx context.Context, keyword string, region models.Region) []models.StationDto {
	return s.provider(region).SearchStations(ctx, keyword)
}

func (s *Service) GetStationsAround(ctx context.Context, lat, lng float64, region models.Region) []models.StationDto {
	return s.provider(region).GetStationsAround(ctx, lat, lng)
}

func (s *Service) GetRoutesByStation(ctx context.Context, stationID string, region models.Region) []models.RouteDto {
	return s.provider(region).GetRoutesByStation(ctx, stationID)
}

func (s *Service) fromCache(ctx context.Context, key string) ([]models.ArrivalInfo, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("arrivals cache get", "key", key, "error", err.Error())
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var out []models.ArrivalInfo
	if err := json.Unmarshal(b, &out); err != nil {
		slog.Warn("arrivals cache decode", "key", key, "error", errors.Wrap(err, "unmarshal").Error())
		return nil, false
	}
	return out, true
}

func (s *Service) throttle(ctx context.Context, region models.Region) {
	if s.rl == nil || s.rateLimitPerMinute <= 0 {
		return
	}
	minuteKey := fmt.Sprintf("upstream:%s:%s", region, s.now().UTC().Format("200601021504"))
	allowed, n, err := s.rl.Allow(ctx, minuteKey, s.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("rate limiter unavailable", "region", string(region), "error", err.Error())
		return
	}
	if !allowed {
		// Слишком много запросов в минуту: подождём немного, чтобы разгрузить источник.
		slog.Warn("upstream rate limit exceeded", "region", string(region), "count", n)
		s.sleep(ctx, s.rateLimitPause)
	}
}

func cacheKey(region models.Region, stationID string) string {
	return fmt.Sprintf("arrivals:%s:%s", region, stationID)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
