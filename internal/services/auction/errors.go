package auction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Business rejections. They are outcomes reported to the caller, not faults.
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionExpired  = errors.New("auction expired")
	ErrAuctionClosed   = errors.New("auction closed")
	ErrBidTooLow       = errors.New("bid below minimum allowed")
	ErrNameTaken       = errors.New("auction name already taken")
)

// Validation errors for malformed parameters.
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction")
)

// BidTooLowError carries the figures the bidder needs to retry.
type BidTooLowError struct {
	MinimumAllowed decimal.Decimal
	CurrentPrice   decimal.Decimal
	Increment      decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid rejected. minimum allowed bid is %s (current price %s + minimum increment %s)",
		e.MinimumAllowed.String(), e.CurrentPrice.String(), e.Increment.String())
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }

// IsRejection reports whether err is a business rejection or a validation
// error, i.e. something the caller caused and the server did not.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrAuctionNotFound, ErrAuctionExpired, ErrAuctionClosed, ErrBidTooLow,
		ErrNameTaken, ErrInvalidBid, ErrInvalidAuction,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
