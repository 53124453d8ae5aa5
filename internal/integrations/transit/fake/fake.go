package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/busnoti/internal/models"
)

// Provider: офлайн-заглушка апстрима для локального запуска без API-ключей.
// Прибытия детерминированы по (stationID, текущая минута): за минуту картинка не меняется.
type Provider struct {
	region models.Region
	now    func() time.Time
}

func New(region models.Region) *Provider {
	return &Provider{region: region, now: time.Now}
}

func (p *Provider) Region() models.Region { return p.region }

func (p *Provider) SearchStations(ctx context.Context, keyword string) []models.StationDto {
	if keyword == "" {
		return []models.StationDto{}
	}
	return []models.StationDto{p.station("FAKE-"+keyword, keyword)}
}

func (p *Provider) GetStationsAround(ctx context.Context, lat, lng float64) []models.StationDto {
	id := fmt.Sprintf("FAKE-%.4f-%.4f", lat, lng)
	st := p.station(id, "fake stop")
	st.Latitude, st.Longitude = &lat, &lng
	return []models.StationDto{st}
}

func (p *Provider) GetRoutesByStation(ctx context.Context, stationID string) []models.RouteDto {
	out := make([]models.RouteDto, 0, 2)
	for i := range 2 {
		id := routeID(stationID, i)
		out = append(out, models.RouteDto{RouteID: id, RouteName: id, RouteType: "fake", Region: p.region})
	}
	return out
}

func (p *Provider) GetArrivalInfo(ctx context.Context, stationID string) []models.ArrivalInfo {
	minute := p.now().UTC().Truncate(time.Minute).Unix()
	out := make([]models.ArrivalInfo, 0, 2)
	for i := range 2 {
		v := hash(fmt.Sprintf("%s|%d|%d", stationID, i, minute))
		// 1..20 минут
		sec := 60 + int(v%1140)
		out = append(out, models.ArrivalInfo{
			RouteID:        routeID(stationID, i),
			RouteName:      routeID(stationID, i),
			PredictTimeSec: sec,
			PredictTimeMin: sec / 60,
			PlateNo:        fmt.Sprintf("FAKE-%04d", v%10000),
			StaOrder:       i + 1,
		})
	}
	return out
}

func (p *Provider) station(id, name string) models.StationDto {
	return models.StationDto{StationID: id, StationName: name, ArsID: id, Region: p.region}
}

func routeID(stationID string, i int) string {
	return fmt.Sprintf("%d", 100+hash(stationID+fmt.Sprint(i))%900)
}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
