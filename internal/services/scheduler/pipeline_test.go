package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/BearBump/busnoti/internal/services/arrivals"
	"github.com/BearBump/busnoti/internal/services/notifications"
	"github.com/BearBump/busnoti/internal/services/subscriptions"
	"github.com/stretchr/testify/require"
)

type repoStub struct {
	subs []*models.Subscription
}

func (r *repoStub) FindActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	return r.subs, nil
}

func (r *repoStub) FindSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	for _, s := range r.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

// ggProvider отдаёт прибытия только для региона GG.
type ggProvider struct {
	mu       sync.Mutex
	arrivals map[string][]models.ArrivalInfo
	calls    int
}

func (p *ggProvider) Region() models.Region { return models.RegionGyeonggi }

func (p *ggProvider) SearchStations(ctx context.Context, keyword string) []models.StationDto {
	return []models.StationDto{}
}

func (p *ggProvider) GetStationsAround(ctx context.Context, lat, lng float64) []models.StationDto {
	return []models.StationDto{}
}

func (p *ggProvider) GetRoutesByStation(ctx context.Context, stationID string) []models.RouteDto {
	return []models.RouteDto{}
}

func (p *ggProvider) GetArrivalInfo(ctx context.Context, stationID string) []models.ArrivalInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.arrivals[stationID]
}

func TestRunOnce_UnknownRegionAndChannel_StillDelivered(t *testing.T) {
	sub := gangseoSub("s1")
	sub.Region = models.Region("INCHEON")
	sub.Channels = []string{models.ChannelConsole, "sms"}

	provider := &ggProvider{arrivals: map[string][]models.ArrivalInfo{
		"gangseo": {{RouteID: "1", RouteName: "1", PredictTimeSec: 480, PredictTimeMin: 8, PlateNo: "A"}},
	}}
	arrivalsSvc, err := arrivals.New(models.RegionGyeonggi, provider)
	require.NoError(t, err)

	store := &memStore{}
	console := &recordingChannel{tag: models.ChannelConsole}
	sched := New(
		subscriptions.New(&repoStub{subs: []*models.Subscription{sub}}),
		arrivalsSvc,
		notifications.NewLedger(store, 10*time.Minute),
		notifications.NewDispatcher(console),
		nil,
	).WithLocation(kst)
	sched.now = func() time.Time { return tickAt }

	require.NoError(t, sched.RunOnce(context.Background()))

	require.Equal(t, 1, provider.calls)
	require.Len(t, console.sent, 1)
	require.Contains(t, console.sent[0].Body, "1번 버스가 약 8분 후 도착")

	recs := store.records()
	require.Len(t, recs, 1)
	require.Equal(t, models.ChannelConsole, recs[0].Channel)
	require.Equal(t, int64(0), sched.Stats().TotalErrors)
}
