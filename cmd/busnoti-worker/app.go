package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BearBump/busnoti/config"
	"github.com/BearBump/busnoti/internal/broker/kafka"
	"github.com/BearBump/busnoti/internal/cache"
	"github.com/BearBump/busnoti/internal/cache/lrucache"
	"github.com/BearBump/busnoti/internal/cache/rediscache"
	"github.com/BearBump/busnoti/internal/channels/broker"
	"github.com/BearBump/busnoti/internal/channels/console"
	"github.com/BearBump/busnoti/internal/channels/email"
	"github.com/BearBump/busnoti/internal/channels/push"
	"github.com/BearBump/busnoti/internal/integrations/transit"
	"github.com/BearBump/busnoti/internal/integrations/transit/fake"
	"github.com/BearBump/busnoti/internal/integrations/transit/gbis"
	"github.com/BearBump/busnoti/internal/integrations/transit/seoulbus"
	"github.com/BearBump/busnoti/internal/models"
	"github.com/BearBump/busnoti/internal/services/arrivals"
	"github.com/BearBump/busnoti/internal/services/notifications"
	"github.com/BearBump/busnoti/internal/services/scheduler"
	"github.com/BearBump/busnoti/internal/services/subscriptions"
	"github.com/BearBump/busnoti/internal/storage/pgstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// workerStore: всё, что воркер читает и пишет в Postgres.
type workerStore interface {
	subscriptions.Repository
	notifications.Store
	scheduler.ProfileSource
	Ping(ctx context.Context) error
}

// workerCache: кэш прибытий и лимитер апстрима; ping nil, если проверять нечего.
type workerCache struct {
	cache   cache.BytesCache
	limiter cache.RateLimiter
	ping    func(ctx context.Context) error
	closeFn func()
}

type workerFactories struct {
	newStorage   func(ctx context.Context, cfg *config.Config) (store workerStore, closeFn func(), err error)
	newCache     func(cfg *config.Config) workerCache
	newProducer  func(cfg *config.Config) (producer broker.Producer, closeFn func())
	newProviders func(cfg *config.Config) []transit.Provider
	newChannels  func(cfg *config.Config, producer broker.Producer, topic string) []notifications.Channel
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (workerStore, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgstore.New(ctx, connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) workerCache {
			if cfg.Redis.Host == "" {
				// Без Redis кэш и лимит живут в памяти одного воркера.
				size := cfg.BusNoti.ArrivalsCacheSize
				if size <= 0 {
					size = 1024
				}
				maxTTL := time.Duration(cfg.BusNoti.ArrivalsCacheTTLSeconds) * time.Second
				if maxTTL < time.Minute {
					maxTTL = time.Minute
				}
				return workerCache{
					cache:   lrucache.New(size, maxTTL),
					limiter: lrucache.NewRateLimiter(),
				}
			}
			client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)})
			rc := rediscache.NewWithClient(client, "busnoti:")
			return workerCache{
				cache:   rc,
				limiter: rediscache.NewRateLimiterWithClient(client, "busnoti:rl:"),
				ping:    rc.Ping,
				closeFn: func() { _ = rc.Close() },
			}
		},
		newProducer: func(cfg *config.Config) (broker.Producer, func()) {
			if cfg.Kafka.Host == "" {
				return nil, nil
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			p := kafka.NewProducer(brokers)
			if cfg.Kafka.PublishAttempts > 0 {
				p = p.WithRetry(uint(cfg.Kafka.PublishAttempts), 0)
			}
			return p, func() { _ = p.Close() }
		},
		newProviders: func(cfg *config.Config) []transit.Provider {
			if cfg.Providers.UseFake {
				return []transit.Provider{fake.New(models.RegionGyeonggi), fake.New(models.RegionSeoul)}
			}
			gg := cfg.Providers.Gyeonggi
			seoul := cfg.Providers.Seoul
			return []transit.Provider{
				gbis.New(gg.BaseURL, gg.APIKey, time.Duration(gg.TimeoutSeconds)*time.Second),
				seoulbus.New(seoul.BaseURL, seoul.APIKey, time.Duration(seoul.TimeoutSeconds)*time.Second),
			}
		},
		newChannels: func(cfg *config.Config, producer broker.Producer, topic string) []notifications.Channel {
			out := []notifications.Channel{
				console.New(slog.Default()),
				push.New(push.Config{
					VAPIDPublicKey:  cfg.Channels.Push.VAPIDPublicKey,
					VAPIDPrivateKey: cfg.Channels.Push.VAPIDPrivateKey,
					Subject:         cfg.Channels.Push.Subject,
					TTL:             cfg.Channels.Push.TTLSeconds,
				}),
				email.New(email.Config{
					Host:     cfg.Channels.Email.SMTPHost,
					Port:     cfg.Channels.Email.SMTPPort,
					Username: cfg.Channels.Email.Username,
					Password: cfg.Channels.Email.Password,
					From:     cfg.Channels.Email.From,
				}),
			}
			if producer != nil {
				out = append(out, broker.New(producer, topic))
			}
			return out
		},
	}
}

func RunNotifyWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.ArrivalAlertsTopicName
	if topic == "" {
		topic = "bus.arrival.alerts"
	}
	httpAddr := cfg.BusNoti.WorkerHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}

	pollInterval := time.Duration(cfg.BusNoti.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	concurrency := cfg.BusNoti.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	tz := cfg.BusNoti.Timezone
	if tz == "" {
		tz = "Asia/Seoul"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", tz, err)
	}
	dedupWindow := time.Duration(cfg.BusNoti.DedupWindowMinutes) * time.Minute
	if dedupWindow <= 0 {
		dedupWindow = notifications.DefaultDedupWindow
	}
	cacheTTL := time.Duration(cfg.BusNoti.ArrivalsCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Second
	}
	rlPerMin := int64(cfg.BusNoti.UpstreamRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 600
	}
	defaultRegion := models.Region(cfg.BusNoti.DefaultRegion)
	if defaultRegion == "" {
		defaultRegion = models.RegionGyeonggi
	}

	store, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	wc := f.newCache(cfg)
	if wc.closeFn != nil {
		defer wc.closeFn()
	}

	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}

	arrivalsSvc, err := arrivals.New(defaultRegion, f.newProviders(cfg)...)
	if err != nil {
		return err
	}
	arrivalsSvc = arrivalsSvc.
		WithCache(wc.cache, cacheTTL).
		WithRateLimit(wc.limiter, rlPerMin)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs, err := scheduler.NewPrometheusObserver("busnoti", reg)
	if err != nil {
		return err
	}

	dispatcher := notifications.NewDispatcher(f.newChannels(cfg, producer, topic)...)
	slog.Info("notification channels registered", "channels", dispatcher.Channels(), "regions", arrivalsSvc.SupportedRegions())

	sched := scheduler.New(
		subscriptions.New(store),
		arrivalsSvc,
		notifications.NewLedger(store, dedupWindow),
		dispatcher,
		store,
	).
		WithSettings(pollInterval, concurrency).
		WithLocation(loc).
		WithObserver(obs)

	checks := map[string]func(ctx context.Context) error{
		"postgres": store.Ping,
	}
	if wc.ping != nil {
		checks["redis"] = wc.ping
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return runWorkerHTTPServer(gctx, workerHTTPOpts{
			httpAddr:    httpAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			scheduler:   sched,
			arrivals:    arrivalsSvc,
			checks:      checks,
			metrics:     reg,
			cfg:         cfg,
		})
	})
	return g.Wait()
}
