package subscriptions

import (
	"context"
	"log/slog"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/pkg/errors"
)

var ErrNotFound = models.ErrNotFound

type Repository interface {
	FindActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	// FindSubscriptionByID возвращает ErrNotFound, если записи нет.
	FindSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error)
}

// Service: чтение подписок для планировщика. Подписки, нарушающие
// инварианты CRUD-слоя, отбрасываются с предупреждением.
type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) FindActive(ctx context.Context) ([]*models.Subscription, error) {
	subs, err := s.repo.FindActiveSubscriptions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "find active subscriptions")
	}
	out := make([]*models.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub == nil || !sub.IsActive {
			continue
		}
		if err := sub.Validate(); err != nil {
			slog.Warn("skip invalid subscription", "subscription_id", sub.ID, "error", err.Error())
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	if id == "" {
		return nil, errors.New("subscription id is required")
	}
	sub, err := s.repo.FindSubscriptionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}
