package pgstore

import (
	"context"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// GetUserProfile отдаёт адреса доставки; push-подписка только если заданы все три поля.
func (s *Storage) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var (
		p                      = models.UserProfile{UserID: userID}
		endpoint, p256dh, auth *string
	)
	err := s.db.QueryRow(ctx, `
SELECT email, push_endpoint, push_p256dh, push_auth
FROM users
WHERE id = $1
`, userID).Scan(&p.Email, &endpoint, &p256dh, &auth)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user profile")
	}
	if p.Email != nil && *p.Email == "" {
		p.Email = nil
	}
	if endpoint != nil && p256dh != nil && auth != nil && *endpoint != "" {
		p.Push = &models.PushSubscription{Endpoint: *endpoint, P256dh: *p256dh, Auth: *auth}
	}
	return &p, nil
}
