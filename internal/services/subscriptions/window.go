package subscriptions

import (
	"slices"
	"time"

	"github.com/BearBump/busnoti/internal/models"
)

// IsWithinActiveTime проверяет окно активности подписки в момент now
// (now уже должен быть в часовом поясе подписок).
//
// День недели проверяется первым. Границы времени включительные; start > end
// означает окно через полночь (22:00–06:00). Некорректная граница считается
// незаданной.
func IsWithinActiveTime(sub *models.Subscription, now time.Time) bool {
	if len(sub.ActiveDays) > 0 && !slices.Contains(sub.ActiveDays, int(now.Weekday())) {
		return false
	}

	if sub.ActiveTimeStart == nil || sub.ActiveTimeEnd == nil {
		return true
	}
	start, okStart := models.ParseClock(*sub.ActiveTimeStart)
	end, okEnd := models.ParseClock(*sub.ActiveTimeEnd)
	if !okStart || !okEnd {
		return true
	}

	cur := now.Hour()*60 + now.Minute()
	if start <= end {
		return start <= cur && cur <= end
	}
	return cur >= start || cur <= end
}
