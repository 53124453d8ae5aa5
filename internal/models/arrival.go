package models

// ArrivalInfo: один прогноз прибытия одной машины маршрута на остановку.
// Живёт в пределах одного тика планировщика, не сохраняется.
type ArrivalInfo struct {
	RouteID        string `json:"routeId"`
	RouteName      string `json:"routeName"`
	PredictTimeSec int    `json:"predictTimeSec"`
	PredictTimeMin int    `json:"predictTimeMin"`
	// PlateNo: ключ идемпотентности события прибытия.
	PlateNo        string `json:"plateNo"`
	StaOrder       int    `json:"staOrder"`
	RemainingStops *int   `json:"remainingStops,omitempty"`
}

type StationDto struct {
	StationID   string   `json:"stationId"`
	StationName string   `json:"stationName"`
	ArsID       string   `json:"arsId,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Region      Region   `json:"region"`
}

type RouteDto struct {
	RouteID   string `json:"routeId"`
	RouteName string `json:"routeName"`
	RouteType string `json:"routeType,omitempty"`
	Region    Region `json:"region"`
}
