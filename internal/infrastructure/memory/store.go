package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketplace/internal/domain"
	"marketplace/pkg/utils"
)

// Store keeps every entity in process memory. It backs storage.driver=memory
// and the service tests.
type Store struct {
	mu sync.RWMutex

	offers        map[int64]*domain.Offer
	bids          map[int64]*domain.Bid
	revisions     map[int64][]*domain.BidRevision // bidID -> revisions, ascending
	notifications map[int64]*domain.Notification
	users         map[int64]*domain.User

	nextOfferID        int64
	nextOfferRevision  int64
	nextBidID          int64
	nextBidRevision    int64
	nextNotificationID int64
}

func NewStore() *Store {
	return &Store{
		offers:        make(map[int64]*domain.Offer),
		bids:          make(map[int64]*domain.Bid),
		revisions:     make(map[int64][]*domain.BidRevision),
		notifications: make(map[int64]*domain.Notification),
		users:         make(map[int64]*domain.User),
	}
}

// AddUser registers a display name for the user directory.
func (s *Store) AddUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.users[user.ID] = &u
}

func (s *Store) CreateOffer(ctx context.Context, offer *domain.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOfferID++
	s.nextOfferRevision++
	offer.ID = s.nextOfferID
	offer.RevisionID = s.nextOfferRevision
	if offer.UUID == "" {
		offer.UUID = utils.NewUUID()
	}
	stored := *offer
	s.offers[offer.ID] = &stored
	return nil
}

func (s *Store) GetOffer(ctx context.Context, offerID int64) (*domain.Offer, error) {
	const op = "memory.GetOffer"

	s.mu.RLock()
	defer s.mu.RUnlock()

	offer, ok := s.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("%s: offer %d: %w", op, offerID, domain.ErrNotFound)
	}
	out := *offer
	return &out, nil
}

func (s *Store) UpdateOffer(ctx context.Context, offer *domain.Offer) error {
	const op = "memory.UpdateOffer"

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.offers[offer.ID]
	if !ok {
		return fmt.Errorf("%s: offer %d: %w", op, offer.ID, domain.ErrNotFound)
	}
	s.nextOfferRevision++
	offer.RevisionID = s.nextOfferRevision
	// Mode and owner are fixed at creation.
	offer.Mode = current.Mode
	offer.OwnerID = current.OwnerID
	stored := *offer
	s.offers[offer.ID] = &stored
	return nil
}

func (s *Store) DeleteOffer(ctx context.Context, offerID int64) error {
	const op = "memory.DeleteOffer"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[offerID]; !ok {
		return fmt.Errorf("%s: offer %d: %w", op, offerID, domain.ErrNotFound)
	}
	delete(s.offers, offerID)
	return nil
}

func (s *Store) CountOffersByOwner(ctx context.Context, ownerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, o := range s.offers {
		if o.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListBidsForOffer(ctx context.Context, offerID int64) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := s.bidsForOffer(offerID)
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		return bids[i].ID < bids[j].ID
	})
	return bids, nil
}

func (s *Store) HighestBid(ctx context.Context, offerID int64) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest float64
	found := false
	for _, b := range s.bids {
		if b.OfferID != offerID || b.Status != domain.BidEnabled {
			continue
		}
		if !found || b.Amount > highest {
			highest = b.Amount
			found = true
		}
	}
	return highest, found, nil
}

func (s *Store) CountBids(ctx context.Context, offerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.bidsForOffer(offerID)), nil
}

func (s *Store) UserBids(ctx context.Context, offerID, userID int64) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bids []*domain.Bid
	for _, b := range s.bids {
		if b.OfferID == offerID && b.OwnerID == userID {
			out := *b
			bids = append(bids, &out)
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].ID < bids[j].ID })
	return bids, nil
}

func (s *Store) GetBid(ctx context.Context, bidID int64) (*domain.Bid, error) {
	const op = "memory.GetBid"

	s.mu.RLock()
	defer s.mu.RUnlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return nil, fmt.Errorf("%s: bid %d: %w", op, bidID, domain.ErrNotFound)
	}
	out := *bid
	return &out, nil
}

func (s *Store) CreateBid(ctx context.Context, bid *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBidID++
	s.nextBidRevision++
	bid.ID = s.nextBidID
	bid.RevisionID = s.nextBidRevision
	if bid.UUID == "" {
		bid.UUID = utils.NewUUID()
	}
	stored := *bid
	s.bids[bid.ID] = &stored
	s.revisions[bid.ID] = []*domain.BidRevision{{
		RevisionID: bid.RevisionID,
		BidID:      bid.ID,
		Amount:     bid.Amount,
		EditorID:   bid.OwnerID,
		Timestamp:  bid.Created,
	}}
	return nil
}

func (s *Store) CreateBidRevision(ctx context.Context, bid *domain.Bid, rev *domain.BidRevision) error {
	const op = "memory.CreateBidRevision"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bids[bid.ID]; !ok {
		return fmt.Errorf("%s: bid %d: %w", op, bid.ID, domain.ErrNotFound)
	}
	s.nextBidRevision++
	rev.RevisionID = s.nextBidRevision
	rev.BidID = bid.ID

	bid.RevisionID = rev.RevisionID
	bid.Amount = rev.Amount
	bid.Changed = rev.Timestamp

	stored := *bid
	s.bids[bid.ID] = &stored
	storedRev := *rev
	s.revisions[bid.ID] = append(s.revisions[bid.ID], &storedRev)
	return nil
}

func (s *Store) DeleteBid(ctx context.Context, bidID int64) error {
	const op = "memory.DeleteBid"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bids[bidID]; !ok {
		return fmt.Errorf("%s: bid %d: %w", op, bidID, domain.ErrNotFound)
	}
	delete(s.bids, bidID)
	delete(s.revisions, bidID)
	return nil
}

func (s *Store) ListRevisions(ctx context.Context, bidID int64) ([]*domain.BidRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	revs := make([]*domain.BidRevision, 0, len(s.revisions[bidID]))
	for _, r := range s.revisions[bidID] {
		out := *r
		revs = append(revs, &out)
	}
	return revs, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextNotificationID++
	n.ID = s.nextNotificationID
	if n.UUID == "" {
		n.UUID = utils.NewUUID()
	}
	stored := *n
	s.notifications[n.ID] = &stored
	return nil
}

func (s *Store) GetNotification(ctx context.Context, notificationID int64) (*domain.Notification, error) {
	const op = "memory.GetNotification"

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[notificationID]
	if !ok {
		return nil, fmt.Errorf("%s: notification %d: %w", op, notificationID, domain.ErrNotFound)
	}
	out := *n
	return &out, nil
}

func (s *Store) ListByOffer(ctx context.Context, offerID int64) ([]*domain.Notification, error) {
	return s.filterNotifications(func(n *domain.Notification) bool { return n.OfferID == offerID }), nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	return s.filterNotifications(func(n *domain.Notification) bool { return n.UserID == userID }), nil
}

func (s *Store) DeleteNotification(ctx context.Context, notificationID int64) error {
	const op = "memory.DeleteNotification"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[notificationID]; !ok {
		return fmt.Errorf("%s: notification %d: %w", op, notificationID, domain.ErrNotFound)
	}
	delete(s.notifications, notificationID)
	return nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, n := range s.notifications {
		if n.Created.Before(cutoff) {
			delete(s.notifications, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	const op = "memory.GetUser"

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%s: user %d: %w", op, userID, domain.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// bidsForOffer copies matching bids; callers hold the read lock.
func (s *Store) bidsForOffer(offerID int64) []*domain.Bid {
	var bids []*domain.Bid
	for _, b := range s.bids {
		if b.OfferID == offerID {
			out := *b
			bids = append(bids, &out)
		}
	}
	return bids
}

func (s *Store) filterNotifications(match func(*domain.Notification) bool) []*domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Notification
	for _, n := range s.notifications {
		if match(n) {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
