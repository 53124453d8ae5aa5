package transit

import (
	"context"

	"github.com/BearBump/busnoti/internal/models"
)

// Provider нормализует один региональный апстрим.
// Все методы fail-soft: при любой ошибке пишут лог и возвращают пустой список.
type Provider interface {
	Region() models.Region
	SearchStations(ctx context.Context, keyword string) []models.StationDto
	GetStationsAround(ctx context.Context, lat, lng float64) []models.StationDto
	GetRoutesByStation(ctx context.Context, stationID string) []models.RouteDto
	GetArrivalInfo(ctx context.Context, stationID string) []models.ArrivalInfo
}
