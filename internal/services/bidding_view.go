package services

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

const anonymousName = "Anonymous"

type BidRow struct {
	BidID      int64    `json:"bid_id"`
	OwnerName  string   `json:"owner_name"`
	CreatedAgo string   `json:"created_ago"`
	Amount     float64  `json:"amount"`
	LastRaise  *float64 `json:"last_raise,omitempty"`
	Deletable  bool     `json:"deletable"`
}

type OfferSummary struct {
	Offer          *domain.Offer `json:"offer"`
	DisplayPrice   string        `json:"display_price"`
	PromoText      string        `json:"promo_text,omitempty"`
	BiddingPrompt  string        `json:"bidding_prompt"`
	StartingBid    float64       `json:"starting_bid"`
	MinimumNextBid float64       `json:"minimum_next_bid"`
	CallToAction   string        `json:"call_to_action"`
	BidCount       int           `json:"bid_count"`
	HasBid         bool          `json:"has_bid"`
	Rows           []BidRow      `json:"rows"`
}

// BiddingView assembles the data behind an offer page: price line, bidding
// form values and the bids table.
type BiddingView struct {
	offers domain.OfferRepository
	bids   domain.BidStore
	users  domain.UserDirectory
	cache  domain.ViewCache
	log    logger.Logger
}

func NewBiddingView(
	offers domain.OfferRepository,
	bids domain.BidStore,
	users domain.UserDirectory,
	cache domain.ViewCache,
	log logger.Logger,
) *BiddingView {
	return &BiddingView{
		offers: offers,
		bids:   bids,
		users:  users,
		cache:  cache,
		log:    log,
	}
}

func (v *BiddingView) OfferSummary(ctx context.Context, offerID, viewerID int64, now time.Time) (*OfferSummary, error) {
	offer, err := v.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, offerLoadError(offerID, err)
	}

	history, err := v.bidHistory(ctx, offer)
	if err != nil {
		return nil, err
	}

	highest, hasHighest := highestEnabled(history)
	summary := &OfferSummary{
		Offer:          offer,
		DisplayPrice:   DisplayPrice(offer.Mode, highest, hasHighest),
		PromoText:      PromoText(len(history)),
		StartingBid:    StartingBid(offer.Mode, highest, hasHighest),
		MinimumNextBid: MinimumNextBid(offer.Mode, highest, hasHighest),
		BidCount:       len(history),
		Rows:           make([]BidRow, 0, len(history)),
	}
	summary.BiddingPrompt = BiddingPrompt(summary.StartingBid)

	names := make(map[int64]string)
	for _, entry := range history {
		bid := entry.Bid
		if bid.OwnerID == viewerID {
			summary.HasBid = true
		}
		summary.Rows = append(summary.Rows, BidRow{
			BidID:      bid.ID,
			OwnerName:  v.ownerName(ctx, names, bid.OwnerID),
			CreatedAgo: humanize.RelTime(bid.Created, now, "ago", "from now"),
			Amount:     bid.Amount,
			LastRaise:  LastRaise(bid.Amount, entry.Revisions),
			Deletable:  viewerID != 0 && bid.OwnerID == viewerID,
		})
	}
	summary.CallToAction = CallToAction(summary.HasBid)
	return summary, nil
}

// LastRaise is the difference between the current amount and the amount of
// the second-most-recent revision. Nil when the bid was never raised.
func LastRaise(current float64, revisions []domain.BidRevision) *float64 {
	if len(revisions) < 2 {
		return nil
	}
	raise := current - revisions[len(revisions)-2].Amount
	return &raise
}

func (v *BiddingView) bidHistory(ctx context.Context, offer *domain.Offer) ([]domain.BidHistoryEntry, error) {
	if v.cache != nil {
		entries, ok, err := v.cache.GetBidHistory(ctx, offer.ID)
		if err != nil {
			v.log.Warn("View cache read failed", "offer_id", offer.ID, "error", err)
		} else if ok {
			return entries, nil
		}
	}

	fill := v.cache != nil
	var generation int64
	if fill {
		gen, err := v.cache.Generation(ctx, offer.CacheTags())
		if err != nil {
			v.log.Warn("View cache generation read failed", "offer_id", offer.ID, "error", err)
			fill = false
		}
		generation = gen
	}

	bids, err := v.bids.ListBidsForOffer(ctx, offer.ID)
	if err != nil {
		return nil, domain.NewStorageError("list bids", err)
	}

	entries := make([]domain.BidHistoryEntry, 0, len(bids))
	for _, bid := range bids {
		revs, err := v.bids.ListRevisions(ctx, bid.ID)
		if err != nil {
			return nil, domain.NewStorageError("list revisions", err)
		}
		entry := domain.BidHistoryEntry{Bid: *bid, Revisions: make([]domain.BidRevision, 0, len(revs))}
		for _, r := range revs {
			entry.Revisions = append(entry.Revisions, *r)
		}
		entries = append(entries, entry)
	}

	if fill {
		if err := v.cache.SetBidHistory(ctx, offer.ID, entries, offer.CacheTags(), generation); err != nil {
			v.log.Warn("View cache write failed", "offer_id", offer.ID, "error", err)
		}
	}
	return entries, nil
}

func (v *BiddingView) ownerName(ctx context.Context, names map[int64]string, userID int64) string {
	if userID == 0 {
		return anonymousName
	}
	if name, ok := names[userID]; ok {
		return name
	}

	name := anonymousName
	user, err := v.users.GetUser(ctx, userID)
	switch {
	case err == nil && user.Name != "":
		name = user.Name
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		v.log.Warn("User lookup failed", "user_id", userID, "error", err)
	}
	names[userID] = name
	return name
}

func highestEnabled(history []domain.BidHistoryEntry) (float64, bool) {
	var highest float64
	found := false
	for _, e := range history {
		if e.Bid.Status != domain.BidEnabled {
			continue
		}
		if !found || e.Bid.Amount > highest {
			highest = e.Bid.Amount
			found = true
		}
	}
	return highest, found
}
