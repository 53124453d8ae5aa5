package mocks

import (
	"context"
	"time"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindNotification(ctx context.Context, subscriptionID, plateNo string, from, to time.Time) (*models.NotificationRecord, error) {
	args := m.Called(ctx, subscriptionID, plateNo, from, to)
	var rec *models.NotificationRecord
	if v := args.Get(0); v != nil {
		rec = v.(*models.NotificationRecord)
	}
	return rec, args.Error(1)
}

func (m *MockStore) InsertNotification(ctx context.Context, rec *models.NotificationRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Type() string {
	return m.Called().String(0)
}

func (m *MockChannel) IsAvailable(target models.NotificationTarget) bool {
	return m.Called(target).Bool(0)
}

func (m *MockChannel) Send(ctx context.Context, target models.NotificationTarget, msg models.AlertMessage) error {
	return m.Called(ctx, target, msg).Error(0)
}
