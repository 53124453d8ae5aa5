package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/BearBump/busnoti/internal/services/notifications"
	"github.com/BearBump/busnoti/internal/services/subscriptions"
	"github.com/pkg/errors"
)

type SubscriptionSource interface {
	FindActive(ctx context.Context) ([]*models.Subscription, error)
	FindByID(ctx context.Context, id string) (*models.Subscription, error)
}

type ArrivalSource interface {
	GetArrivalsByRoute(ctx context.Context, stationID, routeID string, region models.Region) []models.ArrivalInfo
}

type Ledger interface {
	HasAlreadySent(ctx context.Context, subscriptionID, plateNo string, arrivalTime time.Time) (bool, error)
	RecordResults(ctx context.Context, subscriptionID, plateNo string, arrivalTime time.Time, results []models.DeliveryResult) ([]*models.NotificationRecord, error)
}

type Dispatcher interface {
	SendNotification(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage, channels []string) []models.DeliveryResult
}

// ProfileSource: внешний профиль пользователя (email, push-подписка).
type ProfileSource interface {
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// Scheduler раз в interval проходит по активным подпискам и рассылает
// уведомления о прибытии. Сбой одной подписки не прерывает проход,
// сбой всего прохода не останавливает планировщик.
type Scheduler struct {
	subs       SubscriptionSource
	arrivals   ArrivalSource
	ledger     Ledger
	dispatcher Dispatcher
	profiles   ProfileSource
	obs        Observer

	interval    time.Duration
	concurrency int
	loc         *time.Location
	now         func() time.Time

	triggerCh chan struct{}

	// subLocks сериализует обработку одной подписки между проходом и
	// разовой проверкой: проверка дубля и запись в журнал не атомарны.
	subLocksMu sync.Mutex
	subLocks   map[string]*sync.Mutex

	startedAtUnixNano   int64
	lastSweepUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalSweeps         atomic.Int64
	totalProcessed      atomic.Int64
	totalNotified       atomic.Int64
	totalDeduplicated   atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(subs SubscriptionSource, arrivals ArrivalSource, ledger Ledger, dispatcher Dispatcher, profiles ProfileSource) *Scheduler {
	return &Scheduler{
		subs: subs, arrivals: arrivals, ledger: ledger, dispatcher: dispatcher, profiles: profiles,
		obs:               nopObserver{},
		interval:          30 * time.Second,
		concurrency:       10,
		loc:               time.UTC,
		now:               time.Now,
		triggerCh:         make(chan struct{}, 1),
		subLocks:          make(map[string]*sync.Mutex),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Scheduler) WithSettings(interval time.Duration, concurrency int) *Scheduler {
	if interval > 0 {
		s.interval = interval
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	return s
}

// WithLocation задаёт часовой пояс, в котором читаются окна активности подписок.
func (s *Scheduler) WithLocation(loc *time.Location) *Scheduler {
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Scheduler) WithObserver(obs Observer) *Scheduler {
	if obs != nil {
		s.obs = obs
	}
	return s
}

// Trigger forces an immediate sweep (best-effort, non-blocking).
func (s *Scheduler) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt         time.Time  `json:"startedAt"`
	LastSweepAt       *time.Time `json:"lastSweepAt,omitempty"`
	LastTriggerAt     *time.Time `json:"lastTriggerAt,omitempty"`
	TotalSweeps       int64      `json:"totalSweeps"`
	TotalProcessed    int64      `json:"totalProcessed"`
	TotalNotified     int64      `json:"totalNotified"`
	TotalDeduplicated int64      `json:"totalDeduplicated"`
	TotalErrors       int64      `json:"totalErrors"`
	InFlight          int64      `json:"inFlight"`
	LastError         string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		StartedAt:         time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalSweeps:       s.totalSweeps.Load(),
		TotalProcessed:    s.totalProcessed.Load(),
		TotalNotified:     s.totalNotified.Load(),
		TotalDeduplicated: s.totalDeduplicated.Load(),
		TotalErrors:       s.totalErrors.Load(),
		InFlight:          s.inFlight.Load(),
	}
	if n := s.lastSweepUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastSweepAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	slog.Info("scheduler started", "interval", s.interval.String(), "concurrency", s.concurrency, "timezone", s.loc.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_ = s.RunOnce(ctx)
		case <-s.triggerCh:
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход. Ошибка возвращается только для сбоя всего прохода
// (например, недоступно хранилище подписок); она уже залогирована.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	started := time.Now()
	now := s.now()
	s.lastSweepUnixNano.Store(now.UTC().UnixNano())
	s.totalSweeps.Add(1)

	processed := 0
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
			slog.Error("sweep panic", "panic", fmt.Sprint(r))
			s.setLastError(err)
		}
		s.obs.SweepFinished(time.Since(started), processed, err)
	}()

	subs, err := s.subs.FindActive(ctx)
	if err != nil {
		slog.Error("find active subscriptions", "error", err.Error())
		s.setLastError(err)
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, sub := range subs {
		sem <- struct{}{}
		wg.Add(1)
		s.inFlight.Add(1)
		go func() {
			defer func() {
				s.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if _, err := s.processOne(ctx, sub, now); err != nil {
				s.totalErrors.Add(1)
				s.obs.SubscriptionFailed()
				s.setLastError(err)
				slog.Error("process subscription", "subscription_id", sub.ID, "error", err.Error())
			}
			s.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
	processed = len(subs)
	return nil
}

// CheckResult: итог обработки одной подписки.
type CheckResult struct {
	SubscriptionID string `json:"subscriptionId"`
	Active         bool   `json:"active"`
	Arrivals       int    `json:"arrivals"`
	Notified       int    `json:"notified"`
	Deduplicated   int    `json:"deduplicated"`
}

// CheckSubscription прогоняет одну подписку по тому же пути, что и проход.
func (s *Scheduler) CheckSubscription(ctx context.Context, id string) (CheckResult, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return CheckResult{SubscriptionID: id}, err
	}
	return s.processOne(ctx, sub, s.now())
}

func (s *Scheduler) processOne(ctx context.Context, sub *models.Subscription, now time.Time) (res CheckResult, err error) {
	res.SubscriptionID = sub.ID
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	unlock := s.lockSubscription(sub.ID)
	defer unlock()

	if !sub.IsActive || !subscriptions.IsWithinActiveTime(sub, now.In(s.loc)) {
		return res, nil
	}
	res.Active = true

	arrivals := s.arrivals.GetArrivalsByRoute(ctx, sub.StationID, sub.RouteID, sub.Region)
	res.Arrivals = len(arrivals)

	leadSec := sub.LeadTimeMinutes * 60
	var target *models.NotificationTarget
	for _, a := range arrivals {
		if a.PredictTimeSec > leadSec {
			continue
		}
		arrivalAt := now.Add(time.Duration(a.PredictTimeSec) * time.Second)

		sent, err := s.ledger.HasAlreadySent(ctx, sub.ID, a.PlateNo, arrivalAt)
		if err != nil {
			return res, err
		}
		if sent {
			res.Deduplicated++
			s.totalDeduplicated.Add(1)
			s.obs.ArrivalDeduplicated()
			continue
		}

		if target == nil {
			t, err := s.resolveTarget(ctx, sub.UserID)
			if err != nil {
				return res, err
			}
			target = &t
		}

		msg := notifications.BuildArrivalMessage(sub, a)
		results := s.dispatcher.SendNotification(ctx, *target, msg, sub.Channels)
		for _, r := range results {
			s.obs.NotificationDelivered(r.Channel, r.Success)
		}
		if _, err := s.ledger.RecordResults(ctx, sub.ID, a.PlateNo, arrivalAt, results); err != nil {
			return res, err
		}
		res.Notified++
		s.totalNotified.Add(1)
	}
	return res, nil
}

// resolveTarget: без профиля есть только userID, каналы push/email окажутся недоступны.
func (s *Scheduler) resolveTarget(ctx context.Context, userID string) (models.NotificationTarget, error) {
	if s.profiles == nil {
		return models.NotificationTarget{UserID: userID}, nil
	}
	p, err := s.profiles.GetUserProfile(ctx, userID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && p == nil) {
		return models.NotificationTarget{UserID: userID}, nil
	}
	if err != nil {
		return models.NotificationTarget{}, errors.Wrap(err, "get user profile")
	}
	return p.Target(), nil
}

func (s *Scheduler) lockSubscription(id string) func() {
	s.subLocksMu.Lock()
	mu, ok := s.subLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.subLocks[id] = mu
	}
	s.subLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (s *Scheduler) setLastError(err error) {
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}
