package notifications

import (
	"fmt"

	"github.com/BearBump/busnoti/internal/models"
)

const alertTitle = "버스 도착 알림"

func BuildArrivalMessage(sub *models.Subscription, a models.ArrivalInfo) models.AlertMessage {
	routeName := a.RouteName
	if routeName == "" {
		routeName = a.RouteID
	}
	return models.AlertMessage{
		Title: alertTitle,
		Body:  fmt.Sprintf("%s: %s번 버스가 약 %d분 후 도착합니다", alertTitle, routeName, a.PredictTimeMin),
		Data: models.AlertData{
			SubscriptionID: sub.ID,
			RouteID:        a.RouteID,
			RouteName:      routeName,
			PlateNo:        a.PlateNo,
			PredictTimeMin: a.PredictTimeMin,
			PredictTimeSec: a.PredictTimeSec,
			RemainingStops: a.RemainingStops,
		},
	}
}
