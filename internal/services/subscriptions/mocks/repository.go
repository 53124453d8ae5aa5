package mocks

import (
	"context"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	args := m.Called(ctx)
	var out []*models.Subscription
	if v := args.Get(0); v != nil {
		out = v.([]*models.Subscription)
	}
	return out, args.Error(1)
}

func (m *MockRepository) FindSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	var out *models.Subscription
	if v := args.Get(0); v != nil {
		out = v.(*models.Subscription)
	}
	return out, args.Error(1)
}
