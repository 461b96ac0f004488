package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/domain"
	"marketplace/internal/infrastructure/memory"
	"marketplace/pkg/logger"
)

func TestSubmitBid_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, 9, domain.FixedMinimum(100))

	highest, has, err := f.store.HighestBid(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 101.0, MinimumNextBid(offer.Mode, highest, has))

	res, err := f.submit(offer.ID, 1, "150")
	require.NoError(t, err)
	assert.False(t, res.Raised)
	assert.Equal(t, SubmitSuccessMessage, res.Message)

	_, err = f.submit(offer.ID, 1, "140")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, domain.CodeBidTooLow, vErr.Code)
	assert.Equal(t, "Minimum bid needs to be 151$", vErr.Message)

	_, err = f.submit(offer.ID, 2, "151")
	require.NoError(t, err)

	count, err := f.store.CountBids(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	f.invalidator.reset()
	_, err = f.lifecycle.DeleteOffer(ctx, offer.ID)
	require.NoError(t, err)

	count, err = f.store.CountBids(ctx, offer.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, f.invalidator.invalidated(domain.MyOffersCacheTag(9)))
}

func TestSubmitBid_RaiseOverSeededHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, 9, domain.NoMinimum())
	seeded := f.seedBids(t, offer.ID, 10, 15, 12)

	highest, has, err := f.store.HighestBid(ctx, offer.ID)
	require.NoError(t, err)
	require.True(t, has)
	assert.Equal(t, 15.0, highest)

	res, err := f.submit(offer.ID, seeded[0].OwnerID, "20")
	require.NoError(t, err)
	assert.True(t, res.Raised)
	assert.Equal(t, seeded[0].ID, res.Bid.ID)

	highest, _, err = f.store.HighestBid(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, highest)

	count, err := f.store.CountBids(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	revs, err := f.store.ListRevisions(ctx, seeded[0].ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 10.0, *LastRaise(20, []domain.BidRevision{*revs[0], *revs[1]}))
}

func TestSubmitBid_InvalidAmount(t *testing.T) {
	f := newFixture(t)
	offer := f.createOffer(t, 9, domain.NoMinimum())

	for _, raw := range []string{"", "abc", "12abc", "NaN", "Inf", "-Inf", "0", "-5"} {
		t.Run(raw, func(t *testing.T) {
			_, err := f.submit(offer.ID, 1, raw)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, domain.CodeInvalidAmount, vErr.Code)
			assert.Equal(t, "amount", vErr.Field)
		})
	}

	count, err := f.store.CountBids(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.invalidator.calls)
}

func TestSubmitBid_OfferNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.submit(404, 1, "10")

	var nfErr *domain.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "offer", nfErr.Entity)
	assert.Equal(t, int64(404), nfErr.ID)
}

func TestSubmitBid_FloorBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		mode    domain.OfferMode
		amount  string
		wantErr bool
	}{
		{"equal to fixed price", domain.FixedMinimum(100), "100", true},
		{"fraction above fixed price", domain.FixedMinimum(100), "100.5", false},
		{"minimum next bid", domain.FixedMinimum(100), "101", false},
		{"small bid without minimum", domain.NoMinimum(), "0.5", false},
		{"below fixed price", domain.FixedMinimum(100), "99", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			offer := f.createOffer(t, 9, tt.mode)

			_, err := f.submit(offer.ID, 1, tt.amount)
			if tt.wantErr {
				var vErr *domain.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, domain.CodeBidTooLow, vErr.Code)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSubmitBid_RaiseCreatesRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, 9, domain.NoMinimum())

	first, err := f.submit(offer.ID, 1, "10")
	require.NoError(t, err)

	raised, err := f.submit(offer.ID, 1, "20")
	require.NoError(t, err)
	assert.True(t, raised.Raised)
	assert.Equal(t, first.Bid.ID, raised.Bid.ID)
	assert.Equal(t, 20.0, raised.Bid.Amount)
	assert.Greater(t, raised.Bid.RevisionID, first.Bid.RevisionID)

	count, err := f.store.CountBids(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	revs, err := f.store.ListRevisions(ctx, first.Bid.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 10.0, revs[0].Amount)
	assert.Equal(t, 20.0, revs[1].Amount)
	assert.Equal(t, int64(1), revs[1].EditorID)
	assert.Equal(t, f.now, revs[1].Timestamp)
	assert.Equal(t, "Bid raised for offer 1", revs[1].LogMessage)

	highest, has, err := f.store.HighestBid(ctx, offer.ID)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, 20.0, highest)
}

func TestSubmitBid_SingleInvalidationPerSuccess(t *testing.T) {
	f := newFixture(t)
	offer := f.createOffer(t, 9, domain.NoMinimum())
	tag := domain.OfferCacheTag(offer.ID)

	_, err := f.submit(offer.ID, 1, "10")
	require.NoError(t, err)
	assert.Equal(t, 1, f.invalidator.invalidated(tag))

	_, err = f.submit(offer.ID, 2, "5")
	require.Error(t, err)
	assert.Equal(t, 1, f.invalidator.invalidated(tag))

	_, err = f.submit(offer.ID, 1, "12")
	require.NoError(t, err)
	assert.Equal(t, 2, f.invalidator.invalidated(tag))
}

func TestSubmitBid_InvalidationFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	offer := f.createOffer(t, 9, domain.NoMinimum())
	f.invalidator.err = errors.New("redis gone")

	_, err := f.submit(offer.ID, 1, "10")
	assert.NoError(t, err)
}

func TestSubmitBid_StorageFailure(t *testing.T) {
	store := memory.NewStore()
	faulty := &faultyStore{Store: store, failCreate: true, deleteBidsBefore: -1}
	f := newFixtureWithStore(t, store, faulty)
	offer := f.createOffer(t, 9, domain.NoMinimum())

	_, err := f.submit(offer.ID, 1, "10")

	var sErr *domain.StorageError
	require.ErrorAs(t, err, &sErr)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, f.invalidator.calls)
}

func TestSubmitBid_DuplicateUserBidsRaiseLowestID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, 9, domain.NoMinimum())

	first := &domain.Bid{OwnerID: 1, OfferID: offer.ID, Amount: 5, Status: domain.BidEnabled}
	second := &domain.Bid{OwnerID: 1, OfferID: offer.ID, Amount: 6, Status: domain.BidEnabled}
	require.NoError(t, f.store.CreateBid(ctx, first))
	require.NoError(t, f.store.CreateBid(ctx, second))

	found, err := f.bids.FindUserBid(ctx, offer.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	res, err := f.submit(offer.ID, 1, "30")
	require.NoError(t, err)
	assert.True(t, res.Raised)
	assert.Equal(t, first.ID, res.Bid.ID)

	none, err := f.bids.FindUserBid(ctx, offer.ID, 77)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSubmitBid_DisabledBidsIgnoredForFloor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, 9, domain.NoMinimum())

	require.NoError(t, f.store.CreateBid(ctx, &domain.Bid{
		OwnerID: 5, OfferID: offer.ID, Amount: 500, Status: domain.BidDisabled,
	}))

	_, err := f.submit(offer.ID, 1, "10")
	assert.NoError(t, err)
}

func TestSubmitBid_SerializedSubmissions(t *testing.T) {
	f := newFixture(t, WithOfferLocker(memory.NewOfferLocker()))
	offer := f.createOffer(t, 9, domain.FixedMinimum(100))

	const bidders = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			if _, err := f.submit(offer.ID, user, "101"); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	count, err := f.store.CountBids(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSubmitBid_OutbidNotification(t *testing.T) {
	store := memory.NewStore()
	notifications := NewNotificationService(store, nil, nil, logger.NewNop())
	f := newFixtureWithStore(t, store, store, WithOutbidNotifications(notifications))
	ctx := context.Background()
	offer := f.createOffer(t, 9, domain.NoMinimum())

	_, err := f.submit(offer.ID, 1, "10")
	require.NoError(t, err)
	_, err = f.submit(offer.ID, 1, "11")
	require.NoError(t, err)

	list, err := notifications.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.submit(offer.ID, 2, "15")
	require.NoError(t, err)

	list, err = notifications.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, offer.ID, list[0].OfferID)
	assert.Equal(t, `You have been outbid on "Road bike": highest bid is now 15$`, list[0].Message)
}
