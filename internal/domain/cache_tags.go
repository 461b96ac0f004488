package domain

import (
	"strconv"
	"strings"
)

const (
	offerTagPrefix    = "offer:"
	myOffersTagPrefix = "my_offers_user_"
)

func OfferCacheTag(offerID int64) string {
	return offerTagPrefix + strconv.FormatInt(offerID, 10)
}

func MyOffersCacheTag(userID int64) string {
	return myOffersTagPrefix + strconv.FormatInt(userID, 10)
}

// ParseOfferCacheTag returns the offer id of an "offer:{id}" tag.
func ParseOfferCacheTag(tag string) (int64, bool) {
	return parseTag(tag, offerTagPrefix)
}

// ParseMyOffersCacheTag returns the user id of a "my_offers_user_{id}" tag.
func ParseMyOffersCacheTag(tag string) (int64, bool) {
	return parseTag(tag, myOffersTagPrefix)
}

func parseTag(tag, prefix string) (int64, bool) {
	if !strings.HasPrefix(tag, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(tag, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
