package auction

import (
	"auctionhouse/internal/models"
	"auctionhouse/internal/store"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PlaceBid admits or rejects one bid. Bids on the same auction are decided
// strictly one at a time under the auction's lock, so the minimum-bid check
// always sees the latest price.
func (svc *auctionService) PlaceBid(ctx context.Context, auctionID, bidder string, price decimal.Decimal) (models.Bid, error) {
	if err := validateBid(auctionID, bidder, price); err != nil {
		return models.Bid{}, err
	}

	bid, err := svc.admitBid(ctx, auctionID, strings.TrimSpace(bidder), price)
	if err != nil {
		if IsRejection(err) {
			zap.L().Debug("auction.bid_rejected",
				zap.String("auction_id", auctionID),
				zap.String("bidder", bidder),
				zap.String("price", price.String()),
				zap.String("reason", err.Error()))
		}
		return models.Bid{}, err
	}

	zap.L().Info("auction.bid_accepted",
		zap.String("auction_id", auctionID),
		zap.String("bid_id", bid.ID),
		zap.String("price", bid.Price.String()))

	// Outside the lock: a slow broadcast must not hold up the next bid.
	svc.notifier.Notify()
	return bid, nil
}

func (svc *auctionService) admitBid(ctx context.Context, auctionID, bidder string, price decimal.Decimal) (models.Bid, error) {
	release, err := svc.bidLocks.Acquire(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("place bid on %s: %w", auctionID, err)
	}
	defer release()

	auction, err := svc.store.Get(ctx, auctionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Bid{}, fmt.Errorf("auction %s: %w", auctionID, ErrAuctionNotFound)
		}
		return models.Bid{}, fmt.Errorf("place bid: load auction %s: %w", auctionID, err)
	}

	now := svc.now().UTC()
	switch {
	case auction.Status == models.StatusCancelled || auction.Status == models.StatusSold:
		return models.Bid{}, fmt.Errorf("auction %s is %s: %w", auctionID, auction.Status, ErrAuctionClosed)
	case auction.HasEnded(now):
		return models.Bid{}, fmt.Errorf("auction %s: %w", auctionID, ErrAuctionExpired)
	}

	minimum := auction.MinimumAllowedBid()
	if price.LessThan(minimum) {
		return models.Bid{}, &BidTooLowError{
			MinimumAllowed: minimum,
			CurrentPrice:   auction.CurrentPrice,
			Increment:      auction.MinBidIncrement,
		}
	}

	bid := models.Bid{
		ID:        uuid.NewString(),
		AuctionID: auctionID,
		Bidder:    bidder,
		Price:     price,
		Timestamp: now,
	}
	if err := svc.store.RecordBid(ctx, bid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Bid{}, fmt.Errorf("auction %s: %w", auctionID, ErrAuctionNotFound)
		}
		return models.Bid{}, fmt.Errorf("place bid: record bid: %w", err)
	}
	return bid, nil
}

func validateBid(auctionID, bidder string, price decimal.Decimal) error {
	if strings.TrimSpace(auctionID) == "" {
		return fmt.Errorf("%w: missing auction id", ErrInvalidBid)
	}
	if strings.TrimSpace(bidder) == "" {
		return fmt.Errorf("%w: missing bidder", ErrInvalidBid)
	}
	if err := models.CheckAmount(price); err != nil {
		return fmt.Errorf("%w: price: %v", ErrInvalidBid, err)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidBid)
	}
	return nil
}
