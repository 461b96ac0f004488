package domain

import (
	"time"
)

type Offer struct {
	ID         int64       `json:"id"`
	UUID       string      `json:"uuid"`
	RevisionID int64       `json:"revision_id"`
	Title      string      `json:"title" validate:"required,max=150"`
	OwnerID    int64       `json:"owner_id" validate:"gte=0"`
	Status     OfferStatus `json:"status" validate:"oneof=0 1"`
	Mode       OfferMode   `json:"mode"`
	Created    time.Time   `json:"created"`
	Changed    time.Time   `json:"changed"`
}

// CacheTags is the tag set invalidated whenever the offer or one of its bids changes.
func (o *Offer) CacheTags() []string {
	return []string{OfferCacheTag(o.ID)}
}

type OfferStatus int

const (
	OfferUnpublished OfferStatus = iota
	OfferPublished
)

func (s OfferStatus) String() string {
	switch s {
	case OfferUnpublished:
		return "unpublished"
	case OfferPublished:
		return "published"
	default:
		return "unknown"
	}
}

type ModeKind string

const (
	ModeFixedMinimum ModeKind = "with_minimum"
	ModeNoMinimum    ModeKind = "no_minimum"
)

// OfferMode is fixed when the offer is created. Price is only meaningful for
// ModeFixedMinimum.
type OfferMode struct {
	Kind  ModeKind `json:"kind" validate:"oneof=with_minimum no_minimum"`
	Price float64  `json:"price,omitempty" validate:"gte=0"`
}

func FixedMinimum(price float64) OfferMode {
	return OfferMode{Kind: ModeFixedMinimum, Price: price}
}

func NoMinimum() OfferMode {
	return OfferMode{Kind: ModeNoMinimum}
}

type NewOffer struct {
	Title   string
	OwnerID int64
	Mode    OfferMode
	Status  OfferStatus
}

type OfferUpdate struct {
	Title  *string
	Status *OfferStatus
}

type Bid struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	RevisionID int64     `json:"revision_id"`
	OwnerID    int64     `json:"owner_id" validate:"gte=0"`
	OfferID    int64     `json:"offer_id" validate:"required,gt=0"`
	Amount     float64   `json:"amount" validate:"gt=0"`
	Status     BidStatus `json:"status"`
	Created    time.Time `json:"created"`
	Changed    time.Time `json:"changed"`
}

type BidStatus int

const (
	BidDisabled BidStatus = iota
	BidEnabled
)

func (s BidStatus) String() string {
	switch s {
	case BidDisabled:
		return "disabled"
	case BidEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// BidRevision is an immutable snapshot of a bid amount. Revisions of one bid
// ordered by RevisionID ascending are chronological.
type BidRevision struct {
	RevisionID int64     `json:"revision_id"`
	BidID      int64     `json:"bid_id"`
	Amount     float64   `json:"amount" validate:"gt=0"`
	EditorID   int64     `json:"editor_id"`
	Timestamp  time.Time `json:"timestamp"`
	LogMessage string    `json:"log_message"`
}

type Notification struct {
	ID      int64     `json:"id"`
	UUID    string    `json:"uuid"`
	OfferID int64     `json:"offer_id" validate:"required,gt=0"`
	UserID  int64     `json:"user_id" validate:"gte=0"`
	Message string    `json:"message" validate:"required"`
	Created time.Time `json:"created"`
}

type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BidHistoryEntry is one bid together with all of its revisions, the raw
// material of the bidding table.
type BidHistoryEntry struct {
	Bid       Bid           `json:"bid"`
	Revisions []BidRevision `json:"revisions"`
}

// InvalidationEvent is published after a set of cache tags was dropped.
type InvalidationEvent struct {
	Tags []string `json:"tags"`
}

type OfferEventType string

const (
	OfferInvalidated OfferEventType = "offer_invalidated"
	MyOffersChanged  OfferEventType = "my_offers_changed"
)

type OfferEvent struct {
	Type      OfferEventType `json:"type"`
	OfferID   int64          `json:"offer_id,omitempty"`
	UserID    int64          `json:"user_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
