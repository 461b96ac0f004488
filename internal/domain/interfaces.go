package domain

import (
	"context"
	"time"
)

// Repository interfaces
type OfferRepository interface {
	CreateOffer(ctx context.Context, offer *Offer) error
	GetOffer(ctx context.Context, offerID int64) (*Offer, error)
	UpdateOffer(ctx context.Context, offer *Offer) error
	DeleteOffer(ctx context.Context, offerID int64) error
	CountOffersByOwner(ctx context.Context, ownerID int64) (int, error)
}

// BidRepository is the read side of bid storage. None of its methods has side effects.
type BidRepository interface {
	// ListBidsForOffer orders by amount descending, ties by id ascending.
	ListBidsForOffer(ctx context.Context, offerID int64) ([]*Bid, error)
	// HighestBid considers enabled bids only.
	HighestBid(ctx context.Context, offerID int64) (float64, bool, error)
	CountBids(ctx context.Context, offerID int64) (int, error)
	// UserBids returns every bid of the user on the offer, ordered by id.
	UserBids(ctx context.Context, offerID, userID int64) ([]*Bid, error)
}

type BidStore interface {
	BidRepository
	GetBid(ctx context.Context, bidID int64) (*Bid, error)
	// CreateBid assigns ID, UUID and the first revision.
	CreateBid(ctx context.Context, bid *Bid) error
	// CreateBidRevision stores rev as the bid's new current revision and
	// updates bid.RevisionID, bid.Amount and bid.Changed accordingly.
	CreateBidRevision(ctx context.Context, bid *Bid, rev *BidRevision) error
	DeleteBid(ctx context.Context, bidID int64) error
	ListRevisions(ctx context.Context, bidID int64) ([]*BidRevision, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, notificationID int64) (*Notification, error)
	ListByOffer(ctx context.Context, offerID int64) ([]*Notification, error)
	ListByUser(ctx context.Context, userID int64) ([]*Notification, error)
	DeleteNotification(ctx context.Context, notificationID int64) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, userID int64) (*User, error)
}

// Cache interfaces
type CacheInvalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) error
}

type ViewCache interface {
	GetBidHistory(ctx context.Context, offerID int64) ([]BidHistoryEntry, bool, error)
	// Generation changes whenever one of tags is invalidated. Read it before
	// loading the data a later SetBidHistory will store.
	Generation(ctx context.Context, tags []string) (int64, error)
	// SetBidHistory is skipped when the generation of tags moved past generation.
	SetBidHistory(ctx context.Context, offerID int64, entries []BidHistoryEntry, tags []string, generation int64) error
}

// Concurrency
type OfferLocker interface {
	WithOfferLock(ctx context.Context, offerID int64, fn func(ctx context.Context) error) error
}

// Validation interface
type Violation struct {
	Field   string
	Message string
}

type EntityValidator interface {
	Validate(entity interface{}) []Violation
}

type BiddingMetrics interface {
	BidAccepted(kind string)
	BidRejected(reason string)
	OfferDeleted(result CascadeResult)
}

// Event interfaces
type EventSubscriber interface {
	SubscribeToInvalidations(ctx context.Context, handler InvalidationHandler) error
}

type InvalidationHandler func(event *InvalidationEvent) error

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID int64, message interface{}) error
}

type OfferBroadcaster interface {
	BroadcastToOffer(ctx context.Context, offerID int64, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

type MaintenanceScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() int64
	OfferID() int64
}

type ConnectionManager interface {
	RegisterConnection(userID, offerID int64, conn WebSocketConnection) error
	// UnregisterConnection is a no-op when conn was already replaced.
	UnregisterConnection(userID, offerID int64, conn WebSocketConnection) error
	GetConnectionsForOffer(offerID int64) []WebSocketConnection
	GetConnectionsForUser(userID int64) []WebSocketConnection
	BroadcastToOffer(offerID int64, message interface{}) error
	NotifyUser(userID int64, message interface{}) error
	CloseAndUnregisterConnections(offerID int64) error
}
