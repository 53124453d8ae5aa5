package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Region: тег апстрима, обслуживающего остановку.
type Region string

const (
	RegionGyeonggi Region = "GG"
	RegionSeoul    Region = "SEOUL"
)

// Каналы доставки.
const (
	ChannelPush    = "push"
	ChannelEmail   = "email"
	ChannelConsole = "console"
	ChannelKafka   = "kafka"
)

type Subscription struct {
	ID              string   `json:"id" validate:"required"`
	UserID          string   `json:"userId" validate:"required"`
	// Region без своего провайдера обслуживается провайдером по умолчанию.
	Region          Region   `json:"region" validate:"required"`
	StationID       string   `json:"stationId" validate:"required"`
	RouteID         string   `json:"routeId" validate:"required"`
	StaOrder        *int     `json:"staOrder,omitempty"`
	LeadTimeMinutes int      `json:"leadTimeMinutes" validate:"gte=1"`
	// Неизвестный тег канала даёт неуспех только для этого канала.
	Channels        []string `json:"channels" validate:"dive,required"`

	// "HH:MM", обе границы включительно; либо обе заданы, либо обе пустые.
	ActiveTimeStart *string `json:"activeTimeStart,omitempty" validate:"omitempty,clock"`
	ActiveTimeEnd   *string `json:"activeTimeEnd,omitempty" validate:"omitempty,clock"`
	// 0 = воскресенье ... 6 = суббота; пусто = все дни.
	ActiveDays []int `json:"activeDays,omitempty" validate:"dive,gte=0,lte=6"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var subscriptionValidator = newSubscriptionValidator()

func newSubscriptionValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, ok := ParseClock(fl.Field().String())
		return ok
	})
	return v
}

// Validate проверяет инварианты подписки, которые обеспечивает CRUD-слой.
func (s *Subscription) Validate() error {
	if err := subscriptionValidator.Struct(s); err != nil {
		return errors.Wrap(err, "invalid subscription")
	}
	if s.IsActive && len(s.Channels) == 0 {
		return errors.New("invalid subscription: active subscription has no channels")
	}
	if (s.ActiveTimeStart == nil) != (s.ActiveTimeEnd == nil) {
		return errors.New("invalid subscription: activeTimeStart and activeTimeEnd must be set together")
	}
	return nil
}

// ParseClock разбирает "HH:MM" в минуты от начала суток.
func ParseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
