package mocks

import (
	"context"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Region() models.Region {
	args := m.Called()
	return args.Get(0).(models.Region)
}

func (m *MockProvider) SearchStations(ctx context.Context, keyword string) []models.StationDto {
	args := m.Called(ctx, keyword)
	return args.Get(0).([]models.StationDto)
}

func (m *MockProvider) GetStationsAround(ctx context.Context, lat, lng float64) []models.StationDto {
	args := m.Called(ctx, lat, lng)
	return args.Get(0).([]models.StationDto)
}

func (m *MockProvider) GetRoutesByStation(ctx context.Context, stationID string) []models.RouteDto {
	args := m.Called(ctx, stationID)
	return args.Get(0).([]models.RouteDto)
}

func (m *MockProvider) GetArrivalInfo(ctx context.Context, stationID string) []models.ArrivalInfo {
	args := m.Called(ctx, stationID)
	return args.Get(0).([]models.ArrivalInfo)
}
