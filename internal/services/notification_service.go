package services

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

type NotificationService struct {
	repo      domain.NotificationRepository
	notifier  domain.UserNotifier
	validator domain.EntityValidator
	log       logger.Logger
}

// NewNotificationService builds the service. notifier may be nil when no
// realtime channel is attached.
func NewNotificationService(
	repo domain.NotificationRepository,
	notifier domain.UserNotifier,
	validator domain.EntityValidator,
	log logger.Logger,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		notifier:  notifier,
		validator: validator,
		log:       log,
	}
}

func (s *NotificationService) Notify(ctx context.Context, offerID, userID int64, message string, now time.Time) (*domain.Notification, error) {
	n := &domain.Notification{
		OfferID: offerID,
		UserID:  userID,
		Message: message,
		Created: now,
	}
	if err := validateEntity(s.validator, n); err != nil {
		return nil, err
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, domain.NewStorageError("create notification", err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyUser(ctx, userID, n); err != nil {
			s.log.Warn("Realtime notification failed", "user_id", userID, "error", err)
		}
	}
	return n, nil
}

func (s *NotificationService) ListForUser(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewStorageError("list notifications", err)
	}
	return list, nil
}

// Delete removes a notification on behalf of its recipient. Other users get
// NotFound so they cannot probe for ids.
func (s *NotificationService) Delete(ctx context.Context, notificationID, userID int64) error {
	n, err := s.repo.GetNotification(ctx, notificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.NotFoundError{Entity: "notification", ID: notificationID}
		}
		return domain.NewStorageError("load notification", err)
	}
	if n.UserID != userID {
		return &domain.NotFoundError{Entity: "notification", ID: notificationID}
	}

	if err := s.repo.DeleteNotification(ctx, notificationID); err != nil {
		return domain.NewStorageError("delete notification", err)
	}
	return nil
}

// Prune drops notifications created before now-retention.
func (s *NotificationService) Prune(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	removed, err := s.repo.DeleteOlderThan(ctx, now.Add(-retention))
	if err != nil {
		return 0, domain.NewStorageError("prune notifications", err)
	}
	return removed, nil
}
