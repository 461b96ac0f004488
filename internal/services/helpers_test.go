package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/infrastructure/memory"
	"marketplace/internal/infrastructure/validation"
	"marketplace/pkg/logger"
)

var errStoreDown = errors.New("store down")

type recordingInvalidator struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recordingInvalidator) InvalidateTags(ctx context.Context, tags ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), tags...))
	return r.err
}

func (r *recordingInvalidator) invalidated(tag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.calls {
		for _, t := range call {
			if t == tag {
				n++
			}
		}
	}
	return n
}

func (r *recordingInvalidator) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// faultyStore fails selected bid writes after a number of successful ones.
type faultyStore struct {
	*memory.Store
	failCreate       bool
	deleteBidsBefore int // successful DeleteBid calls before failing; -1 never fails
	deletedBids      int
}

func (f *faultyStore) CreateBid(ctx context.Context, bid *domain.Bid) error {
	if f.failCreate {
		return errStoreDown
	}
	return f.Store.CreateBid(ctx, bid)
}

func (f *faultyStore) DeleteBid(ctx context.Context, bidID int64) error {
	if f.deleteBidsBefore >= 0 && f.deletedBids >= f.deleteBidsBefore {
		return errStoreDown
	}
	f.deletedBids++
	return f.Store.DeleteBid(ctx, bidID)
}

type fixture struct {
	store       *memory.Store
	invalidator *recordingInvalidator
	lifecycle   *OfferLifecycle
	bids        *BidService
	now         time.Time
}

func newFixture(t *testing.T, opts ...BidServiceOption) *fixture {
	t.Helper()
	store := memory.NewStore()
	return newFixtureWithStore(t, store, store, opts...)
}

func newFixtureWithStore(t *testing.T, store *memory.Store, bidStore domain.BidStore, opts ...BidServiceOption) *fixture {
	t.Helper()
	log := logger.NewNop()
	inv := &recordingInvalidator{}
	validator := validation.NewEntityValidator()
	lifecycle := NewOfferLifecycle(store, bidStore, store, inv, validator, nil, log)
	return &fixture{
		store:       store,
		invalidator: inv,
		lifecycle:   lifecycle,
		bids:        NewBidService(store, bidStore, lifecycle, validator, log, opts...),
		now:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) createOffer(t *testing.T, owner int64, mode domain.OfferMode) *domain.Offer {
	t.Helper()
	offer, err := f.lifecycle.CreateOffer(context.Background(), domain.NewOffer{
		Title:   "Road bike",
		OwnerID: owner,
		Mode:    mode,
		Status:  domain.OfferPublished,
	}, f.now)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	f.invalidator.reset()
	return offer
}

func (f *fixture) submit(offerID, userID int64, amount string) (*SubmitBidResult, error) {
	return f.bids.SubmitBid(context.Background(), SubmitBidRequest{
		OfferID: offerID,
		UserID:  userID,
		Amount:  amount,
		Now:     f.now,
	})
}

// seedBids stores one enabled bid per amount directly, bypassing the floor
// check. Owners are 1, 2, 3... in order.
func (f *fixture) seedBids(t *testing.T, offerID int64, amounts ...float64) []*domain.Bid {
	t.Helper()
	bids := make([]*domain.Bid, 0, len(amounts))
	for i, amount := range amounts {
		bid := &domain.Bid{
			OwnerID: int64(i + 1),
			OfferID: offerID,
			Amount:  amount,
			Status:  domain.BidEnabled,
			Created: f.now,
			Changed: f.now,
		}
		if err := f.store.CreateBid(context.Background(), bid); err != nil {
			t.Fatalf("seed bid: %v", err)
		}
		bids = append(bids, bid)
	}
	return bids
}
