package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

const SubmitSuccessMessage = "Your bid was successfully submitted."

type SubmitBidRequest struct {
	OfferID int64
	UserID  int64
	Amount  string
	Now     time.Time
}

type SubmitBidResult struct {
	Bid     *domain.Bid
	Raised  bool
	Message string
}

type BidService struct {
	offers        domain.OfferRepository
	bids          domain.BidStore
	lifecycle     *OfferLifecycle
	validator     domain.EntityValidator
	locker        domain.OfferLocker
	notifications *NotificationService
	metrics       domain.BiddingMetrics
	log           logger.Logger
}

type BidServiceOption func(*BidService)

// WithOfferLocker runs the read-validate-write section of a submission under
// a per-offer lock.
func WithOfferLocker(locker domain.OfferLocker) BidServiceOption {
	return func(s *BidService) {
		s.locker = locker
	}
}

// WithOutbidNotifications tells the previous highest bidder when someone else
// takes the lead.
func WithOutbidNotifications(notifications *NotificationService) BidServiceOption {
	return func(s *BidService) {
		s.notifications = notifications
	}
}

func WithMetrics(metrics domain.BiddingMetrics) BidServiceOption {
	return func(s *BidService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

func NewBidService(
	offers domain.OfferRepository,
	bids domain.BidStore,
	lifecycle *OfferLifecycle,
	validator domain.EntityValidator,
	log logger.Logger,
	opts ...BidServiceOption,
) *BidService {
	service := &BidService{
		offers:    offers,
		bids:      bids,
		lifecycle: lifecycle,
		validator: validator,
		metrics:   nopMetrics{},
		log:       log,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// SubmitBid places a new bid or raises the user's existing bid on the offer.
// On success exactly one bid write and one invalidation of the offer's tags
// happened; on failure neither did.
func (s *BidService) SubmitBid(ctx context.Context, req SubmitBidRequest) (*SubmitBidResult, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.reject(req, err)
		return nil, err
	}

	offer, err := s.offers.GetOffer(ctx, req.OfferID)
	if err != nil {
		err = offerLoadError(req.OfferID, err)
		s.reject(req, err)
		return nil, err
	}

	var (
		result         *SubmitBidResult
		previousLeader int64
		hadLeader      bool
	)
	place := func(ctx context.Context) error {
		if s.notifications != nil {
			previousLeader, hadLeader = s.currentLeader(ctx, offer.ID)
		}
		var err error
		result, err = s.place(ctx, offer, req, amount)
		return err
	}

	if s.locker != nil {
		err = s.locker.WithOfferLock(ctx, offer.ID, place)
		if err != nil && !isDomainError(err) {
			err = domain.NewStorageError("lock offer", err)
		}
	} else {
		err = place(ctx)
	}
	if err != nil {
		s.reject(req, err)
		return nil, err
	}

	s.lifecycle.OnBidSaved(ctx, result.Bid)

	kind := "new"
	if result.Raised {
		kind = "raise"
	}
	s.metrics.BidAccepted(kind)
	s.log.Info("Bid accepted", "offer_id", offer.ID, "user_id", req.UserID,
		"bid_id", result.Bid.ID, "amount", amount, "kind", kind)

	if hadLeader && previousLeader != req.UserID {
		s.notifyOutbid(ctx, offer, previousLeader, amount, req.Now)
	}
	return result, nil
}

// place runs the floor check and the single store write.
func (s *BidService) place(ctx context.Context, offer *domain.Offer, req SubmitBidRequest, amount float64) (*SubmitBidResult, error) {
	highest, hasHighest, err := s.bids.HighestBid(ctx, offer.ID)
	if err != nil {
		return nil, domain.NewStorageError("highest bid", err)
	}
	if !ValidateIncrement(offer.Mode, highest, hasHighest, amount) {
		return nil, &domain.ValidationError{
			Code:    domain.CodeBidTooLow,
			Field:   "amount",
			Message: TooLowMessage(MinimumNextBid(offer.Mode, highest, hasHighest)),
		}
	}

	existing, err := s.FindUserBid(ctx, offer.ID, req.UserID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		rev := &domain.BidRevision{
			BidID:      existing.ID,
			Amount:     amount,
			EditorID:   req.UserID,
			Timestamp:  req.Now,
			LogMessage: fmt.Sprintf("Bid raised for offer %d", offer.ID),
		}
		candidate := *existing
		candidate.Amount = amount
		candidate.Changed = req.Now
		if err := validateEntity(s.validator, &candidate); err != nil {
			return nil, err
		}
		if err := validateEntity(s.validator, rev); err != nil {
			return nil, err
		}
		if err := s.bids.CreateBidRevision(ctx, existing, rev); err != nil {
			return nil, domain.NewStorageError("create bid revision", err)
		}
		return &SubmitBidResult{Bid: existing, Raised: true, Message: SubmitSuccessMessage}, nil
	}

	bid := &domain.Bid{
		OwnerID: req.UserID,
		OfferID: offer.ID,
		Amount:  amount,
		Status:  domain.BidEnabled,
		Created: req.Now,
		Changed: req.Now,
	}
	if err := validateEntity(s.validator, bid); err != nil {
		return nil, err
	}
	if err := s.bids.CreateBid(ctx, bid); err != nil {
		return nil, domain.NewStorageError("create bid", err)
	}
	return &SubmitBidResult{Bid: bid, Message: SubmitSuccessMessage}, nil
}

// FindUserBid returns the user's bid on the offer, or nil. When the store
// holds several, the lowest id wins.
func (s *BidService) FindUserBid(ctx context.Context, offerID, userID int64) (*domain.Bid, error) {
	bids, err := s.bids.UserBids(ctx, offerID, userID)
	if err != nil {
		return nil, domain.NewStorageError("find user bid", err)
	}
	if len(bids) == 0 {
		return nil, nil
	}
	if len(bids) > 1 {
		s.log.Warn("User holds several bids on one offer", "offer_id", offerID,
			"user_id", userID, "count", len(bids))
	}
	return bids[0], nil
}

func (s *BidService) currentLeader(ctx context.Context, offerID int64) (int64, bool) {
	bids, err := s.bids.ListBidsForOffer(ctx, offerID)
	if err != nil {
		s.log.Warn("Could not read current leader", "offer_id", offerID, "error", err)
		return 0, false
	}
	for _, b := range bids {
		if b.Status == domain.BidEnabled {
			return b.OwnerID, true
		}
	}
	return 0, false
}

func (s *BidService) notifyOutbid(ctx context.Context, offer *domain.Offer, userID int64, amount float64, now time.Time) {
	msg := fmt.Sprintf("You have been outbid on %q: highest bid is now %s$", offer.Title, FormatAmount(amount))
	if _, err := s.notifications.Notify(ctx, offer.ID, userID, msg, now); err != nil {
		s.log.Error("Outbid notification failed", "offer_id", offer.ID, "user_id", userID, "error", err)
	}
}

func (s *BidService) reject(req SubmitBidRequest, err error) {
	reason := "storage"
	var vErr *domain.ValidationError
	var nfErr *domain.NotFoundError
	switch {
	case errors.As(err, &vErr):
		reason = string(vErr.Code)
	case errors.As(err, &nfErr):
		reason = "not_found"
	}
	s.metrics.BidRejected(reason)
	s.log.Info("Bid rejected", "offer_id", req.OfferID, "user_id", req.UserID,
		"amount", req.Amount, "reason", reason, "error", err)
}

func parseAmount(raw string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, &domain.ValidationError{
			Code:    domain.CodeInvalidAmount,
			Field:   "amount",
			Message: "Bid input needs to be numeric.",
		}
	}
	if amount <= 0 {
		return 0, &domain.ValidationError{
			Code:    domain.CodeInvalidAmount,
			Field:   "amount",
			Message: "Bid needs to be a positive amount.",
		}
	}
	return amount, nil
}

func isDomainError(err error) bool {
	var vErr *domain.ValidationError
	var nfErr *domain.NotFoundError
	var sErr *domain.StorageError
	return errors.As(err, &vErr) || errors.As(err, &nfErr) || errors.As(err, &sErr)
}
