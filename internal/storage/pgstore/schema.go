package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NULL,
  push_endpoint TEXT NULL,
  push_p256dh TEXT NULL,
  push_auth TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  region TEXT NOT NULL,
  station_id TEXT NOT NULL,
  route_id TEXT NOT NULL,
  sta_order INT NULL,
  lead_time_minutes INT NOT NULL CHECK (lead_time_minutes >= 1),
  channels TEXT[] NOT NULL DEFAULT '{}',
  active_time_start TEXT NULL,
  active_time_end TEXT NULL,
  active_days INT[] NOT NULL DEFAULT '{}',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_active ON subscriptions(is_active) WHERE is_active`,
		`
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
  plate_no TEXT NOT NULL,
  predicted_arrival_at TIMESTAMPTZ NOT NULL,
  sent_at TIMESTAMPTZ NOT NULL,
  channel TEXT NOT NULL
)`,
		// поиск дублей: подписка + машина + окно вокруг прогноза
		`CREATE INDEX IF NOT EXISTS idx_notifications_dedup ON notifications(subscription_id, plate_no, predicted_arrival_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
