package subscriptions

import (
	"testing"
	"time"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

// 2026-03-02, понедельник.
func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIsWithinActiveTime_NoConstraints(t *testing.T) {
	sub := &models.Subscription{}
	require.True(t, IsWithinActiveTime(sub, at("03:17")))
	require.True(t, IsWithinActiveTime(sub, at("23:59")))
}

func TestIsWithinActiveTime_NormalWindow(t *testing.T) {
	sub := &models.Subscription{ActiveTimeStart: ptr("08:00"), ActiveTimeEnd: ptr("08:30")}

	cases := map[string]bool{
		"07:59": false,
		"08:00": true,
		"08:15": true,
		"08:30": true,
		"08:31": false,
	}
	for hhmm, want := range cases {
		require.Equal(t, want, IsWithinActiveTime(sub, at(hhmm)), hhmm)
	}
}

func TestIsWithinActiveTime_OvernightWindow(t *testing.T) {
	sub := &models.Subscription{ActiveTimeStart: ptr("22:00"), ActiveTimeEnd: ptr("06:00")}

	cases := map[string]bool{
		"23:00": true,
		"05:00": true,
		"22:00": true,
		"06:00": true,
		"00:00": true,
		"12:00": false,
		"21:59": false,
		"06:01": false,
	}
	for hhmm, want := range cases {
		require.Equal(t, want, IsWithinActiveTime(sub, at(hhmm)), hhmm)
	}
}

func TestIsWithinActiveTime_DayShortCircuits(t *testing.T) {
	sub := &models.Subscription{
		ActiveDays:      []int{int(time.Saturday), int(time.Sunday)},
		ActiveTimeStart: ptr("00:00"),
		ActiveTimeEnd:   ptr("23:59"),
	}
	require.False(t, IsWithinActiveTime(sub, at("12:00")))

	sub.ActiveDays = []int{int(time.Monday)}
	require.True(t, IsWithinActiveTime(sub, at("12:00")))
}

func TestIsWithinActiveTime_DaysOnly(t *testing.T) {
	sub := &models.Subscription{ActiveDays: []int{1, 2, 3, 4, 5}}
	require.True(t, IsWithinActiveTime(sub, at("04:00")))
	require.False(t, IsWithinActiveTime(sub, at("04:00").AddDate(0, 0, 5))) // суббота
}

func TestIsWithinActiveTime_MalformedBoundIgnored(t *testing.T) {
	sub := &models.Subscription{ActiveTimeStart: ptr("8am"), ActiveTimeEnd: ptr("08:30")}
	require.True(t, IsWithinActiveTime(sub, at("12:00")))
}

func TestIsWithinActiveTime_SingleMinuteWindow(t *testing.T) {
	sub := &models.Subscription{ActiveTimeStart: ptr("08:00"), ActiveTimeEnd: ptr("08:00")}
	require.True(t, IsWithinActiveTime(sub, at("08:00")))
	require.False(t, IsWithinActiveTime(sub, at("08:01")))
}
