package arrivals

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	cachemocks "github.com/BearBump/busnoti/internal/cache/mocks"
	transitmocks "github.com/BearBump/busnoti/internal/integrations/transit/mocks"
	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	suite.Suite

	gg    *transitmocks.MockProvider
	seoul *transitmocks.MockProvider
	cache *cachemocks.MockBytesCache
	rl    *cachemocks.MockRateLimiter
	svc   *Service

	slept []time.Duration
}

func (s *ServiceSuite) SetupTest() {
	s.gg = &transitmocks.MockProvider{}
	s.gg.On("Region").Return(models.RegionGyeonggi)
	s.seoul = &transitmocks.MockProvider{}
	s.seoul.On("Region").Return(models.RegionSeoul)
	s.cache = &cachemocks.MockBytesCache{}
	s.rl = &cachemocks.MockRateLimiter{}

	svc, err := New(models.RegionGyeonggi, s.gg, s.seoul)
	s.Require().NoError(err)
	s.slept = nil
	svc.sleep = func(_ context.Context, d time.Duration) { s.slept = append(s.slept, d) }
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC) }
	s.svc = svc
}

func (s *ServiceSuite) TestNew_DefaultRegionRequired() {
	_, err := New(models.RegionSeoul, s.gg)
	s.Require().Error(err)
}

func (s *ServiceSuite) TestSupportedRegions() {
	s.Require().Equal([]models.Region{models.RegionGyeonggi, models.RegionSeoul}, s.svc.SupportedRegions())
}

func (s *ServiceSuite) TestGetArrivalsByStation_RoutesByRegion() {
	want := []models.ArrivalInfo{{RouteID: "402", PlateNo: "A", PredictTimeSec: 300, PredictTimeMin: 5}}
	s.seoul.On("GetArrivalInfo", mock.Anything, "ST1").Return(want).Once()

	got := s.svc.GetArrivalsByStation(context.Background(), "ST1", models.RegionSeoul)
	s.Require().Equal(want, got)
	s.gg.AssertNotCalled(s.T(), "GetArrivalInfo", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetArrivalsByStation_UnknownRegionFallsBack() {
	s.gg.On("GetArrivalInfo", mock.Anything, "ST1").Return([]models.ArrivalInfo{{PlateNo: "A"}}).Once()

	got := s.svc.GetArrivalsByStation(context.Background(), "ST1", models.Region("BUSAN"))
	s.Require().Len(got, 1)
	s.gg.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetArrivalsByStation_NilBecomesEmpty() {
	s.gg.On("GetArrivalInfo", mock.Anything, "ST1").Return([]models.ArrivalInfo(nil)).Once()

	got := s.svc.GetArrivalsByStation(context.Background(), "ST1", models.RegionGyeonggi)
	s.Require().NotNil(got)
	s.Require().Empty(got)
}

func (s *ServiceSuite) TestGetArrivalsByRoute_StringCompare() {
	s.gg.On("GetArrivalInfo", mock.Anything, "gangseo").Return([]models.ArrivalInfo{
		{RouteID: "1", PlateNo: "A"},
		{RouteID: "10", PlateNo: "B"},
		{RouteID: "1", PlateNo: "C"},
	}).Once()

	got := s.svc.GetArrivalsByRoute(context.Background(), "gangseo", "1", models.RegionGyeonggi)
	s.Require().Len(got, 2)
	s.Require().Equal("A", got[0].PlateNo)
	s.Require().Equal("C", got[1].PlateNo)
}

func (s *ServiceSuite) TestGetArrivalsByStation_CacheHit_NoUpstream() {
	s.svc.WithCache(s.cache, 10*time.Second)
	cached := []models.ArrivalInfo{{RouteID: "1", PlateNo: "A", PredictTimeSec: 60, PredictTimeMin: 1}}
	b, _ := json.Marshal(cached)
	s.cache.On("Get", mock.Anything, "arrivals:GG:ST1").Return(b, true, nil).Once()

	got := s.svc.GetArrivalsByStation(context.Background(), "ST1", models.RegionGyeonggi)
	s.Require().Equal(cached, got)
	s.gg.AssertNotCalled(s.T(), "GetArrivalInfo", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetArrivalsByStation_CacheMiss_Stores() {
	s.svc.WithCache(s.cache, 10*time.Second)
	want := []models.ArrivalInfo{{RouteID: "1", PlateNo: "A"}}
	b, _ := json.Marshal(want)
	s.cache.On("Get", mock.Anything, "arrivals:GG:ST1").Return(nil, false, nil).Once()
	s.gg.On("GetArrivalInfo", mock.Anything, "ST1").Return(want).Once()
	s.cache.On("Set", mock.Anything, "arrivals:GG:ST1", b, 10*time.Second).Return(nil).Once()

	got := s.svc.GetArrivalsByStation(context.Background(), "ST1", models.RegionGyeonggi)
	s.Require().Equal(want, got)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetArrivalsByStation_EmptyNotCached_CacheErrorIgnored() {
	s.svc.WithCache(s.cache, 10*time.Second)
	s.cache.On("Get", mock.Anything, "arrivals:GG:ST1").Return(nil, false, errors.New("redis down")).Once()
	s.gg.On("GetArrivalInfo", mock.Anything, "ST1").Return([]models.ArrivalInfo{}).Once()

	got := s.svc.GetArrivalsByStation(context.Background(), "ST1", models.RegionGyeonggi)
	s.Require().Empty(got)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestRateLimit_PausesButProceeds() {
	s.svc.WithRateLimit(s.rl, 100)
	s.rl.On("Allow", mock.Anything, "upstream:GG:202603020815", int64(100), 70*time.Second).
		Return(false, int64(101), nil).Once()
	s.gg.On("GetArrivalInfo", mock.Anything, "ST1").Return([]models.ArrivalInfo{{PlateNo: "A"}}).Once()

	got := s.svc.GetArrivalsByStation(context.Background(), "ST1", models.RegionGyeonggi)
	s.Require().Len(got, 1)
	s.Require().Equal([]time.Duration{500 * time.Millisecond}, s.slept)
}

func (s *ServiceSuite) TestRateLimit_ErrorFailsOpen() {
	s.svc.WithRateLimit(s.rl, 100)
	s.rl.On("Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, int64(0), errors.New("redis down")).Once()
	s.gg.On("GetArrivalInfo", mock.Anything, "ST1").Return([]models.ArrivalInfo{{PlateNo: "A"}}).Once()

	s.Require().Len(s.svc.GetArrivalsByStation(context.Background(), "ST1", models.RegionGyeonggi), 1)
	s.Require().Empty(s.slept)
}

func (s *ServiceSuite) TestPassThroughs() {
	st := []models.StationDto{{StationID: "1", Region: models.RegionSeoul}}
	rt := []models.RouteDto{{RouteID: "R", Region: models.RegionSeoul}}
	s.seoul.On("SearchStations", mock.Anything, "시청").Return(st).Once()
	s.seoul.On("GetStationsAround", mock.Anything, 37.5, 127.0).Return([]models.StationDto{}).Once()
	s.seoul.On("GetRoutesByStation", mock.Anything, "02125").Return(rt).Once()

	ctx := context.Background()
	s.Require().Equal(st, s.svc.SearchStations(ctx, "시청", models.RegionSeoul))
	s.Require().Empty(s.svc.GetStationsAround(ctx, 37.5, 127.0, models.RegionSeoul))
	s.Require().Equal(rt, s.svc.GetRoutesByStation(ctx, "02125", models.RegionSeoul))
	s.seoul.AssertExpectations(s.T())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
