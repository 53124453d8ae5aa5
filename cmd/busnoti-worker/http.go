package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/busnoti/config"
	"github.com/BearBump/busnoti/internal/models"
	"github.com/BearBump/busnoti/internal/services/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerScheduler interface {
	Stats() scheduler.Stats
	Trigger()
	CheckSubscription(ctx context.Context, id string) (scheduler.CheckResult, error)
}

type arrivalsLookup interface {
	SupportedRegions() []models.Region
	GetArrivalsByStation(ctx context.Context, stationID string, region models.Region) []models.ArrivalInfo
	GetArrivalsByRoute(ctx context.Context, stationID, routeID string, region models.Region) []models.ArrivalInfo
	SearchStations(ctx context.Context, keyword string, region models.Region) []models.StationDto
	GetStationsAround(ctx context.Context, lat, lng float64, region models.Region) []models.StationDto
	GetRoutesByStation(ctx context.Context, stationID string, region models.Region) []models.RouteDto
}

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	scheduler workerScheduler
	arrivals  arrivalsLookup
	// checks: зависимости для /readyz, по имени.
	checks  map[string]func(ctx context.Context) error
	metrics prometheus.Gatherer
	cfg     *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newWorkerRouter(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		failed := map[string]string{}
		for name, check := range opts.checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.scheduler == nil {
			writeError(w, http.StatusOK, "scheduler not wired")
			return
		}
		writeJSON(w, http.StatusOK, opts.scheduler.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeError(w, http.StatusOK, "config not wired")
			return
		}
		// Без секретов: только рабочие настройки воркера.
		c := opts.cfg
		writeJSON(w, http.StatusOK, map[string]any{
			"pollIntervalSeconds":        c.BusNoti.PollIntervalSeconds,
			"concurrency":                c.BusNoti.Concurrency,
			"timezone":                   c.BusNoti.Timezone,
			"dedupWindowMinutes":         c.BusNoti.DedupWindowMinutes,
			"arrivalsCacheTtlSeconds":    c.BusNoti.ArrivalsCacheTTLSeconds,
			"upstreamRateLimitPerMinute": c.BusNoti.UpstreamRateLimitPerMinute,
			"defaultRegion":              c.BusNoti.DefaultRegion,
			"fakeProviders":              c.Providers.UseFake,
			"redisEnabled":               c.Redis.Host != "",
			"kafkaEnabled":               c.Kafka.Host != "",
			"kafkaTopic":                 c.Kafka.ArrivalAlertsTopicName,
			"pushEnabled":                c.Channels.Push.VAPIDPublicKey != "",
			"emailEnabled":               c.Channels.Email.SMTPHost != "",
		})
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.scheduler == nil {
			writeError(w, http.StatusOK, "scheduler not wired")
			return
		}
		opts.scheduler.Trigger()
		writeJSON(w, http.StatusOK, map[string]bool{"triggered": true})
	})

	r.Post("/subscriptions/{id}/check", func(w http.ResponseWriter, r *http.Request) {
		if opts.scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler not wired")
			return
		}
		res, err := opts.scheduler.CheckSubscription(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, models.ErrNotFound):
			writeError(w, http.StatusNotFound, "subscription not found")
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, res)
		}
	})

	r.Route("/regions", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if !arrivalsWired(w, opts) {
				return
			}
			writeJSON(w, http.StatusOK, opts.arrivals.SupportedRegions())
		})

		r.Get("/{region}/stations", func(w http.ResponseWriter, r *http.Request) {
			if !arrivalsWired(w, opts) {
				return
			}
			region := regionParam(r)
			q := r.URL.Query()
			if q.Get("lat") != "" || q.Get("lng") != "" {
				lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
				lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
				if errLat != nil || errLng != nil {
					writeError(w, http.StatusBadRequest, "lat and lng must be numbers")
					return
				}
				writeJSON(w, http.StatusOK, opts.arrivals.GetStationsAround(r.Context(), lat, lng, region))
				return
			}
			keyword := strings.TrimSpace(q.Get("keyword"))
			if keyword == "" {
				writeError(w, http.StatusBadRequest, "keyword or lat/lng is required")
				return
			}
			writeJSON(w, http.StatusOK, opts.arrivals.SearchStations(r.Context(), keyword, region))
		})

		r.Get("/{region}/stations/{stationId}/routes", func(w http.ResponseWriter, r *http.Request) {
			if !arrivalsWired(w, opts) {
				return
			}
			writeJSON(w, http.StatusOK, opts.arrivals.GetRoutesByStation(r.Context(), chi.URLParam(r, "stationId"), regionParam(r)))
		})

		r.Get("/{region}/stations/{stationId}/arrivals", func(w http.ResponseWriter, r *http.Request) {
			if !arrivalsWired(w, opts) {
				return
			}
			stationID := chi.URLParam(r, "stationId")
			if routeID := r.URL.Query().Get("routeId"); routeID != "" {
				writeJSON(w, http.StatusOK, opts.arrivals.GetArrivalsByRoute(r.Context(), stationID, routeID, regionParam(r)))
				return
			}
			writeJSON(w, http.StatusOK, opts.arrivals.GetArrivalsByStation(r.Context(), stationID, regionParam(r)))
		})
	})

	if opts.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.metrics, promhttp.HandlerOpts{}))
	}

	// swagger отдаём с no-store и cachebuster по mtime файла.
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	return r
}

func regionParam(r *http.Request) models.Region {
	return models.Region(strings.ToUpper(chi.URLParam(r, "region")))
}

func arrivalsWired(w http.ResponseWriter, opts workerHTTPOpts) bool {
	if opts.arrivals == nil {
		writeError(w, http.StatusServiceUnavailable, "arrivals not wired")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
