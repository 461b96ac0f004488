package services

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

// OfferLifecycle owns offer creation, updates, deletion cascades and the
// cache invalidation that follows any bid write.
type OfferLifecycle struct {
	offers        domain.OfferRepository
	bids          domain.BidStore
	notifications domain.NotificationRepository
	invalidator   domain.CacheInvalidator
	validator     domain.EntityValidator
	metrics       domain.BiddingMetrics
	log           logger.Logger
}

func NewOfferLifecycle(
	offers domain.OfferRepository,
	bids domain.BidStore,
	notifications domain.NotificationRepository,
	invalidator domain.CacheInvalidator,
	validator domain.EntityValidator,
	metrics domain.BiddingMetrics,
	log logger.Logger,
) *OfferLifecycle {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &OfferLifecycle{
		offers:        offers,
		bids:          bids,
		notifications: notifications,
		invalidator:   invalidator,
		validator:     validator,
		metrics:       metrics,
		log:           log,
	}
}

func (m *OfferLifecycle) CreateOffer(ctx context.Context, in domain.NewOffer, now time.Time) (*domain.Offer, error) {
	offer := &domain.Offer{
		Title:   in.Title,
		OwnerID: in.OwnerID,
		Status:  in.Status,
		Mode:    in.Mode,
		Created: now,
		Changed: now,
	}
	if err := validateEntity(m.validator, offer); err != nil {
		return nil, err
	}

	if err := m.offers.CreateOffer(ctx, offer); err != nil {
		return nil, domain.NewStorageError("create offer", err)
	}

	m.invalidate(ctx, domain.MyOffersCacheTag(offer.OwnerID))
	m.log.Info("Offer created", "offer_id", offer.ID, "owner_id", offer.OwnerID, "mode", offer.Mode.Kind)
	return offer, nil
}

func (m *OfferLifecycle) GetOffer(ctx context.Context, offerID int64) (*domain.Offer, error) {
	offer, err := m.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, offerLoadError(offerID, err)
	}
	return offer, nil
}

// UpdateOffer changes title and status. The mode stays as created.
func (m *OfferLifecycle) UpdateOffer(ctx context.Context, offerID int64, upd domain.OfferUpdate, now time.Time) (*domain.Offer, error) {
	offer, err := m.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		offer.Title = *upd.Title
	}
	if upd.Status != nil {
		offer.Status = *upd.Status
	}
	offer.Changed = now

	if err := validateEntity(m.validator, offer); err != nil {
		return nil, err
	}
	if err := m.offers.UpdateOffer(ctx, offer); err != nil {
		return nil, domain.NewStorageError("update offer", err)
	}

	m.invalidate(ctx, offer.CacheTags()...)
	return offer, nil
}

// AuthorizeOfferOwner loads the offer and checks that userID created it.
func (m *OfferLifecycle) AuthorizeOfferOwner(ctx context.Context, offerID, userID int64) (*domain.Offer, error) {
	offer, err := m.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.OwnerID != userID {
		return nil, &domain.ForbiddenError{Entity: "offer", ID: offerID, UserID: userID}
	}
	return offer, nil
}

// OnBidSaved drops every cached view of the bid's offer.
func (m *OfferLifecycle) OnBidSaved(ctx context.Context, bid *domain.Bid) {
	offer, err := m.offers.GetOffer(ctx, bid.OfferID)
	if err != nil {
		m.log.Warn("Offer of saved bid not loadable", "bid_id", bid.ID, "offer_id", bid.OfferID, "error", err)
		return
	}
	m.invalidate(ctx, offer.CacheTags()...)
}

// DeleteOffer removes the offer's bids, then its notifications, then the offer
// itself. The first failure stops the cascade; nothing already removed is restored.
func (m *OfferLifecycle) DeleteOffer(ctx context.Context, offerID int64) (domain.CascadeResult, error) {
	var result domain.CascadeResult

	offer, err := m.GetOffer(ctx, offerID)
	if err != nil {
		return result, err
	}

	bids, err := m.bids.ListBidsForOffer(ctx, offerID)
	if err != nil {
		return result, m.cascadeError("list bids", err, result)
	}
	for _, bid := range bids {
		if err := m.bids.DeleteBid(ctx, bid.ID); err != nil {
			m.log.Error("Cascade stopped deleting bid", "offer_id", offerID, "bid_id", bid.ID, "error", err)
			return result, m.cascadeError("delete bid", err, result)
		}
		result.BidsDeleted++
	}

	notifications, err := m.notifications.ListByOffer(ctx, offerID)
	if err != nil {
		return result, m.cascadeError("list notifications", err, result)
	}
	for _, n := range notifications {
		if err := m.notifications.DeleteNotification(ctx, n.ID); err != nil {
			m.log.Error("Cascade stopped deleting notification", "offer_id", offerID,
				"notification_id", n.ID, "error", err)
			return result, m.cascadeError("delete notification", err, result)
		}
		result.NotificationsDeleted++
	}

	tags := append([]string{domain.MyOffersCacheTag(offer.OwnerID)}, offer.CacheTags()...)
	m.invalidate(ctx, tags...)

	if err := m.offers.DeleteOffer(ctx, offerID); err != nil {
		return result, m.cascadeError("delete offer", err, result)
	}
	result.OfferDeleted = true

	m.metrics.OfferDeleted(result)
	m.log.Info("Offer deleted", "offer_id", offerID,
		"bids_deleted", result.BidsDeleted, "notifications_deleted", result.NotificationsDeleted)
	return result, nil
}

// OnBidsDeleted invalidates the offers of deleted bids that still exist.
func (m *OfferLifecycle) OnBidsDeleted(ctx context.Context, bids []*domain.Bid) {
	for _, bid := range bids {
		offer, err := m.offers.GetOffer(ctx, bid.OfferID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				m.log.Warn("Offer of deleted bid not loadable", "bid_id", bid.ID, "error", err)
			}
			continue
		}
		m.invalidate(ctx, offer.CacheTags()...)
	}
}

func (m *OfferLifecycle) DeleteBid(ctx context.Context, bidID int64) error {
	bid, err := m.bids.GetBid(ctx, bidID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.NotFoundError{Entity: "bid", ID: bidID}
		}
		return domain.NewStorageError("load bid", err)
	}

	if err := m.bids.DeleteBid(ctx, bidID); err != nil {
		return domain.NewStorageError("delete bid", err)
	}

	m.OnBidsDeleted(ctx, []*domain.Bid{bid})
	return nil
}

func (m *OfferLifecycle) AuthorizeBidOwner(ctx context.Context, bidID, userID int64) (*domain.Bid, error) {
	bid, err := m.bids.GetBid(ctx, bidID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.NotFoundError{Entity: "bid", ID: bidID}
		}
		return nil, domain.NewStorageError("load bid", err)
	}
	if bid.OwnerID != userID {
		return nil, &domain.ForbiddenError{Entity: "bid", ID: bidID, UserID: userID}
	}
	return bid, nil
}

// MyOffersCount backs the "My offers (n)" badge.
func (m *OfferLifecycle) MyOffersCount(ctx context.Context, userID int64) (int, error) {
	count, err := m.offers.CountOffersByOwner(ctx, userID)
	if err != nil {
		return 0, domain.NewStorageError("count offers", err)
	}
	return count, nil
}

func (m *OfferLifecycle) invalidate(ctx context.Context, tags ...string) {
	if m.invalidator == nil || len(tags) == 0 {
		return
	}
	if err := m.invalidator.InvalidateTags(ctx, tags...); err != nil {
		m.log.Error("Cache invalidation failed", "tags", tags, "error", err)
	}
}

func (m *OfferLifecycle) cascadeError(op string, err error, result domain.CascadeResult) error {
	partial := result
	return &domain.StorageError{Op: op, Err: err, Cascade: &partial}
}

func offerLoadError(offerID int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.NotFoundError{Entity: "offer", ID: offerID}
	}
	return domain.NewStorageError("load offer", err)
}

func validateEntity(v domain.EntityValidator, entity interface{}) error {
	if v == nil {
		return nil
	}
	violations := v.Validate(entity)
	if len(violations) == 0 {
		return nil
	}
	return &domain.ValidationError{
		Code:    domain.CodeConstraintViolation,
		Field:   violations[0].Field,
		Message: violations[0].Message,
	}
}

type nopMetrics struct{}

func (nopMetrics) BidAccepted(string) {}
func (nopMetrics) BidRejected(string) {}
func (nopMetrics) OfferDeleted(domain.CascadeResult) {}
