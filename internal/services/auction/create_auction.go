package auction

import (
	"auctionhouse/internal/models"
	"auctionhouse/internal/store"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CreateAuctionParams struct {
	Name            string
	Description     string
	StartingPrice   decimal.Decimal
	EndTime         time.Time
	Seller          string
	MinBidIncrement decimal.Decimal
}

func (p CreateAuctionParams) validate(now time.Time) error {
	if err := models.CheckAmount(p.StartingPrice); err != nil {
		return fmt.Errorf("%w: starting price: %v", ErrInvalidAuction, err)
	}
	if err := models.CheckAmount(p.MinBidIncrement); err != nil {
		return fmt.Errorf("%w: minimum bid increment: %v", ErrInvalidAuction, err)
	}
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: auction name is required", ErrInvalidAuction)
	case strings.TrimSpace(p.Seller) == "":
		return fmt.Errorf("%w: seller is required", ErrInvalidAuction)
	case !p.StartingPrice.IsPositive():
		return fmt.Errorf("%w: starting price must be greater than zero", ErrInvalidAuction)
	case !p.MinBidIncrement.IsPositive():
		return fmt.Errorf("%w: minimum bid increment must be greater than zero", ErrInvalidAuction)
	case !p.EndTime.After(now):
		return fmt.Errorf("%w: end time must be in the future", ErrInvalidAuction)
	}
	return nil
}

// CreateAuction validates the parameters, then serializes on the normalized
// name so that two requests for the same name cannot both pass the
// uniqueness check.
func (svc *auctionService) CreateAuction(ctx context.Context, p CreateAuctionParams) (models.Auction, error) {
	now := svc.now().UTC()
	if err := p.validate(now); err != nil {
		return models.Auction{}, err
	}

	auction, err := svc.createLocked(ctx, p, now)
	if err != nil {
		if IsRejection(err) {
			zap.L().Debug("auction.create_rejected", zap.String("name", p.Name), zap.String("reason", err.Error()))
		}
		return models.Auction{}, err
	}

	zap.L().Info("auction.created",
		zap.String("auction_id", auction.ID),
		zap.String("name", auction.Name),
		zap.Time("ends_at", auction.EndTime))

	svc.notifier.Notify()
	return auction, nil
}

func (svc *auctionService) createLocked(ctx context.Context, p CreateAuctionParams, now time.Time) (models.Auction, error) {
	key := models.NormalizeName(p.Name)

	release, err := svc.nameLocks.Acquire(ctx, key)
	if err != nil {
		return models.Auction{}, fmt.Errorf("create auction %q: %w", p.Name, err)
	}
	defer release()

	taken, err := svc.store.NameIsTaken(ctx, key)
	if err != nil {
		return models.Auction{}, fmt.Errorf("create auction: check name: %w", err)
	}
	if taken {
		return models.Auction{}, fmt.Errorf("%q: %w", p.Name, ErrNameTaken)
	}

	auction := models.Auction{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(p.Name),
		Description:     p.Description,
		StartingPrice:   p.StartingPrice,
		CurrentPrice:    p.StartingPrice,
		StartTime:       now,
		EndTime:         p.EndTime.UTC(),
		Seller:          strings.TrimSpace(p.Seller),
		MinBidIncrement: p.MinBidIncrement,
		Status:          models.StatusActive,
		CreatedAt:       now,
		Bids:            []models.Bid{},
	}

	if err := svc.store.Create(ctx, auction); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return models.Auction{}, fmt.Errorf("%q: %w", p.Name, ErrNameTaken)
		}
		return models.Auction{}, fmt.Errorf("create auction: %w", err)
	}
	return auction, nil
}
