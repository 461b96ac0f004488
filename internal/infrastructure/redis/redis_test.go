package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

func setupTest(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, mr, func() {
		client.Close()
		mr.Close()
	}
}

func TestViewCache_RoundTripAndInvalidation(t *testing.T) {
	client, mr, cleanup := setupTest(t)
	defer cleanup()
	ctx := context.Background()

	cache := NewRedisViewCache(client, time.Minute)
	invalidator := NewRedisTagInvalidator(client)

	_, ok, err := cache.GetBidHistory(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	entries := []domain.BidHistoryEntry{{
		Bid:       domain.Bid{ID: 1, OfferID: 4, OwnerID: 2, Amount: 15, Status: domain.BidEnabled},
		Revisions: []domain.BidRevision{{RevisionID: 1, BidID: 1, Amount: 15}},
	}}
	require.NoError(t, cache.SetBidHistory(ctx, 4, entries, []string{"offer:4"}, 0))
	require.NoError(t, cache.SetBidHistory(ctx, 5, nil, []string{"offer:5"}, 0))

	got, ok, err := cache.GetBidHistory(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entries, got)
	assert.True(t, mr.Exists("cache:tag:offer:4"))
	assert.Equal(t, time.Minute, mr.TTL("view:offer:4:bids"))

	require.NoError(t, invalidator.InvalidateTags(ctx, "offer:4", "my_offers_user_9"))

	_, ok, err = cache.GetBidHistory(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("cache:tag:offer:4"))

	empty, ok, err := cache.GetBidHistory(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, empty)
}

func TestViewCache_InvalidationDuringFillSkipsWrite(t *testing.T) {
	client, mr, cleanup := setupTest(t)
	defer cleanup()
	ctx := context.Background()

	cache := NewRedisViewCache(client, time.Minute)
	invalidator := NewRedisTagInvalidator(client)
	tags := []string{"offer:4"}

	gen, err := cache.Generation(ctx, tags)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	// A bid lands and invalidates while the history is still being loaded.
	require.NoError(t, invalidator.InvalidateTags(ctx, "offer:4"))

	stale := []domain.BidHistoryEntry{{Bid: domain.Bid{ID: 1, OfferID: 4, Amount: 10}}}
	require.NoError(t, cache.SetBidHistory(ctx, 4, stale, tags, gen))
	assert.False(t, mr.Exists("view:offer:4:bids"))
	assert.False(t, mr.Exists("cache:tag:offer:4"))

	gen, err = cache.Generation(ctx, tags)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	require.NoError(t, cache.SetBidHistory(ctx, 4, stale, tags, gen))
	got, ok, err := cache.GetBidHistory(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stale, got)
}

func TestTagInvalidator_PublishesEvent(t *testing.T) {
	client, _, cleanup := setupTest(t)
	defer cleanup()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewRedisTagInvalidator(client).InvalidateTags(ctx, "offer:1"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":["offer:1"]}`, msg.Payload)
}

func TestEventSubscriber_DeliversInvalidations(t *testing.T) {
	client, _, cleanup := setupTest(t)
	defer cleanup()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	subscriber := NewRedisEventSubscriber(client, logger.NewNop())
	received := make(chan *domain.InvalidationEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- subscriber.SubscribeToInvalidations(ctx, func(e *domain.InvalidationEvent) error {
			received <- e
			return nil
		})
	}()

	// Publish until the subscriber is attached.
	invalidator := NewRedisTagInvalidator(client)
	var event *domain.InvalidationEvent
	for event == nil {
		require.NoError(t, invalidator.InvalidateTags(ctx, "offer:3"))
		select {
		case event = <-received:
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("no invalidation received")
		}
	}
	assert.Equal(t, []string{"offer:3"}, event.Tags)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestOfferLocker_Serializes(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, _, cleanup := setupTest(t)
	defer cleanup()

	locker := NewRedisOfferLocker(client, logger.NewNop(),
		WithLockExpiry(2*time.Second), WithLockRetryDelay(5*time.Millisecond), WithLockTries(400))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithOfferLock(context.Background(), 1, func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestOfferLocker_PropagatesError(t *testing.T) {
	client, mr, cleanup := setupTest(t)
	defer cleanup()

	locker := NewRedisOfferLocker(client, logger.NewNop())
	boom := errors.New("boom")

	err := locker.WithOfferLock(context.Background(), 2, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("offer_lock:2"))
}

func TestOfferLocker_Contended(t *testing.T) {
	client, mr, cleanup := setupTest(t)
	defer cleanup()

	require.NoError(t, mr.Set("offer_lock:3", "someone-else"))
	locker := NewRedisOfferLocker(client, logger.NewNop(), WithLockTries(2), WithLockRetryDelay(time.Millisecond))

	called := false
	err := locker.WithOfferLock(context.Background(), 3, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
