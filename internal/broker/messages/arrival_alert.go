package messages

import "time"

// ArrivalAlert: событие в Kafka-канале уведомлений; потребители (мобильный
// пуш-шлюз, аналитика) получают то же, что пользователь.
type ArrivalAlert struct {
	AlertID        string    `json:"alert_id"`
	UserID         string    `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
	RouteID        string    `json:"route_id"`
	RouteName      string    `json:"route_name"`
	PlateNo        string    `json:"plate_no"`
	PredictTimeMin int       `json:"predict_time_min"`
	PredictTimeSec int       `json:"predict_time_sec"`
	RemainingStops *int      `json:"remaining_stops,omitempty"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
