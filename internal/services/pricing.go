package services

import (
	"fmt"
	"strconv"

	"marketplace/internal/domain"
)

// BidIncrement is the flat step a new bid must clear above the floor.
const BidIncrement = 1.0

// Floor is the value a new bid must strictly exceed: the current highest bid
// when one exists, otherwise the offer price (fixed minimum) or zero.
func Floor(mode domain.OfferMode, highest float64, hasHighest bool) float64 {
	if hasHighest {
		return highest
	}
	if mode.Kind == domain.ModeFixedMinimum {
		return mode.Price
	}
	return 0
}

func MinimumNextBid(mode domain.OfferMode, highest float64, hasHighest bool) float64 {
	return Floor(mode, highest, hasHighest) + BidIncrement
}

func ValidateIncrement(mode domain.OfferMode, highest float64, hasHighest bool, amount float64) bool {
	return amount > Floor(mode, highest, hasHighest)
}

func DisplayPrice(mode domain.OfferMode, highest float64, hasHighest bool) string {
	if hasHighest {
		return "Highest bid currently " + FormatAmount(highest)
	}
	switch mode.Kind {
	case domain.ModeFixedMinimum:
		return "$" + FormatAmount(mode.Price)
	case domain.ModeNoMinimum:
		return "Start bidding at $0"
	}
	return ""
}

// StartingBid is the amount shown on the bidding form. Without bids it is the
// bare floor, with bids it is the next acceptable amount.
func StartingBid(mode domain.OfferMode, highest float64, hasHighest bool) float64 {
	if hasHighest {
		return highest + BidIncrement
	}
	return Floor(mode, highest, hasHighest)
}

func BiddingPrompt(startingBid float64) string {
	return fmt.Sprintf("Start bidding at %s$", FormatAmount(startingBid))
}

func TooLowMessage(minimum float64) string {
	return fmt.Sprintf("Minimum bid needs to be %s$", FormatAmount(minimum))
}

func PromoText(bidCount int) string {
	if bidCount == 0 {
		return "Be the first!"
	}
	return ""
}

func CallToAction(viewerHasBid bool) string {
	if viewerHasBid {
		return "Raise my bid"
	}
	return "Submit"
}

func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
