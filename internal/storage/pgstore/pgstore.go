package pgstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Storage: подписки, журнал уведомлений и профили доставки в Postgres.
type Storage struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	// Postgres может подниматься дольше воркера (docker compose).
	err = retry.Do(
		func() error { return db.Ping(ctx) },
		retry.Attempts(10),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("postgres not ready, retrying", "attempt", n, "error", err.Error())
		}),
	)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping pg")
	}

	s := &Storage{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.Ping(ctx), "ping pg")
}

func (s *Storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
