package models

import "time"

// ChannelAttempted пишется в журнал, когда ни один канал не доставил сообщение,
// чтобы то же событие прибытия не отправлялось на следующем тике.
const ChannelAttempted = "attempted"

type NotificationRecord struct {
	ID                 string    `json:"id"`
	SubscriptionID     string    `json:"subscriptionId"`
	PlateNo            string    `json:"plateNo"`
	PredictedArrivalAt time.Time `json:"predictedArrivalAt"`
	SentAt             time.Time `json:"sentAt"`
	Channel            string    `json:"channel"`
}

type AlertData struct {
	SubscriptionID string `json:"subscriptionId"`
	RouteID        string `json:"routeId"`
	RouteName      string `json:"routeName"`
	PlateNo        string `json:"plateNo"`
	PredictTimeMin int    `json:"predictTimeMin"`
	PredictTimeSec int    `json:"predictTimeSec"`
	RemainingStops *int   `json:"remainingStops,omitempty"`
}

type AlertMessage struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Data  AlertData `json:"data"`
}

type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// NotificationTarget: куда доставлять; отсутствие email/push делает канал недоступным.
type NotificationTarget struct {
	UserID string
	Email  string
	Push   *PushSubscription
}

type DeliveryResult struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
}

// UserProfile: то, что внешний профиль пользователя отдаёт для доставки.
type UserProfile struct {
	UserID string
	Email  *string
	Push   *PushSubscription
}

func (p *UserProfile) Target() NotificationTarget {
	t := NotificationTarget{UserID: p.UserID, Push: p.Push}
	if p.Email != nil {
		t.Email = *p.Email
	}
	return t
}
