package services

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

// EventListener relays cache invalidations to websocket clients so open
// offer pages and "My offers" badges refresh.
type EventListener struct {
	broadcaster domain.OfferBroadcaster
	notifier    domain.UserNotifier
	offers      domain.OfferRepository
	watchers    OfferWatcherCloser
	clock       func() time.Time
	log         logger.Logger
}

// OfferWatcherCloser drops every realtime client of an offer.
type OfferWatcherCloser interface {
	CloseAndUnregisterConnections(offerID int64) error
}

type EventListenerOption func(*EventListener)

// WithDeletedOfferReaper closes the watchers of offers that no longer exist
// after their invalidation was broadcast.
func WithDeletedOfferReaper(offers domain.OfferRepository, watchers OfferWatcherCloser) EventListenerOption {
	return func(el *EventListener) {
		el.offers = offers
		el.watchers = watchers
	}
}

func NewEventListener(broadcaster domain.OfferBroadcaster, notifier domain.UserNotifier, log logger.Logger, opts ...EventListenerOption) *EventListener {
	el := &EventListener{
		broadcaster: broadcaster,
		notifier:    notifier,
		clock:       time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(el)
	}
	return el
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting invalidation listener")
	return subscriber.SubscribeToInvalidations(ctx, el.HandleInvalidation)
}

func (el *EventListener) HandleInvalidation(event *domain.InvalidationEvent) error {
	ctx := context.Background()
	now := el.clock()

	for _, tag := range event.Tags {
		if offerID, ok := domain.ParseOfferCacheTag(tag); ok {
			err := el.broadcaster.BroadcastToOffer(ctx, offerID, domain.OfferEvent{
				Type:      domain.OfferInvalidated,
				OfferID:   offerID,
				Timestamp: now,
			})
			if err != nil {
				el.log.Error("Failed to broadcast invalidation", "offer_id", offerID, "error", err)
			}
			el.reapIfDeleted(ctx, offerID)
			continue
		}

		if userID, ok := domain.ParseMyOffersCacheTag(tag); ok {
			err := el.notifier.NotifyUser(ctx, userID, domain.OfferEvent{
				Type:      domain.MyOffersChanged,
				UserID:    userID,
				Timestamp: now,
			})
			if err != nil {
				el.log.Error("Failed to notify user", "user_id", userID, "error", err)
			}
			continue
		}

		el.log.Debug("Ignoring unknown cache tag", "tag", tag)
	}
	return nil
}

func (el *EventListener) reapIfDeleted(ctx context.Context, offerID int64) {
	if el.offers == nil || el.watchers == nil {
		return
	}
	_, err := el.offers.GetOffer(ctx, offerID)
	if err == nil {
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		el.log.Warn("Could not check offer after invalidation", "offer_id", offerID, "error", err)
		return
	}
	if err := el.watchers.CloseAndUnregisterConnections(offerID); err != nil {
		el.log.Error("Failed to close watchers of deleted offer", "offer_id", offerID, "error", err)
	}
}
