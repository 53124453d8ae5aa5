package pgstore

import (
	"context"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const subscriptionColumns = `
  id, user_id, region, station_id, route_id, sta_order,
  lead_time_minutes, channels,
  active_time_start, active_time_end, active_days,
  is_active, created_at, updated_at`

func (s *Storage) FindActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := s.db.Query(ctx, `SELECT`+subscriptionColumns+`
FROM subscriptions
WHERE is_active
ORDER BY created_at, id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select active subscriptions")
	}
	defer rows.Close()

	out := make([]*models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}

func (s *Storage) FindSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	row := s.db.QueryRow(ctx, `SELECT`+subscriptionColumns+`
FROM subscriptions
WHERE id = $1
`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var sub models.Subscription
	var region string
	var staOrder *int32
	var days []int32
	if err := row.Scan(
		&sub.ID, &sub.UserID, &region, &sub.StationID, &sub.RouteID, &staOrder,
		&sub.LeadTimeMinutes, &sub.Channels,
		&sub.ActiveTimeStart, &sub.ActiveTimeEnd, &days,
		&sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan subscription")
	}
	sub.Region = models.Region(region)
	if staOrder != nil {
		v := int(*staOrder)
		sub.StaOrder = &v
	}
	if len(days) > 0 {
		sub.ActiveDays = make([]int, 0, len(days))
		for _, d := range days {
			sub.ActiveDays = append(sub.ActiveDays, int(d))
		}
	}
	return &sub, nil
}
