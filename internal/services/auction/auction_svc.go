package auction

import (
	"auctionhouse/internal/locks"
	"auctionhouse/internal/models"
	"auctionhouse/internal/store"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier is told that auction state changed. Implementations must not
// block the caller.
type Notifier interface {
	Notify()
}

type noopNotifier struct{}

func (noopNotifier) Notify() {}

type IAuctionService interface {
	ListActive(ctx context.Context) ([]models.Auction, error)
	GetAuction(ctx context.Context, id string) (models.Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidder string, price decimal.Decimal) (models.Bid, error)
	CreateAuction(ctx context.Context, params CreateAuctionParams) (models.Auction, error)
	EndExpired(ctx context.Context) (int, error)
}

type auctionService struct {
	store     store.Store
	bidLocks  *locks.Registry // keyed by auction id
	nameLocks *locks.Registry // keyed by normalized auction name
	notifier  Notifier
	now       func() time.Time
}

var _ IAuctionService = (*auctionService)(nil)

// NewAuctionService wires the engines to their shared registries. A nil
// notifier disables broadcasts.
func NewAuctionService(st store.Store, bidLocks, nameLocks *locks.Registry, notifier Notifier) IAuctionService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &auctionService{
		store:     st,
		bidLocks:  bidLocks,
		nameLocks: nameLocks,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (svc *auctionService) ListActive(ctx context.Context) ([]models.Auction, error) {
	list, err := svc.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	return list, nil
}

func (svc *auctionService) GetAuction(ctx context.Context, id string) (models.Auction, error) {
	a, err := svc.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Auction{}, fmt.Errorf("auction %s: %w", id, ErrAuctionNotFound)
		}
		return models.Auction{}, fmt.Errorf("get auction %s: %w", id, err)
	}
	return a, nil
}

// EndExpired marks every active auction whose end time has passed as ended.
// Each auction is re-read under its lock so a concurrent bid decision never
// observes a half-finished transition.
func (svc *auctionService) EndExpired(ctx context.Context) (int, error) {
	list, err := svc.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("end expired: %w", err)
	}

	ended := 0
	for _, a := range list {
		if !a.HasEnded(svc.now()) {
			continue
		}
		ok, err := svc.endOne(ctx, a.ID)
		if err != nil {
			zap.L().Warn("auction.end_failed", zap.String("auction_id", a.ID), zap.Error(err))
			continue
		}
		if ok {
			ended++
		}
	}

	if ended > 0 {
		zap.L().Info("auction.ended", zap.Int("count", ended))
		svc.notifier.Notify()
	}
	return ended, nil
}

func (svc *auctionService) endOne(ctx context.Context, id string) (bool, error) {
	release, err := svc.bidLocks.Acquire(ctx, id)
	if err != nil {
		return false, err
	}
	defer release()

	a, err := svc.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Status == models.StatusEnded || !a.HasEnded(svc.now()) {
		return false, nil
	}
	return true, svc.store.MarkEnded(ctx, id)
}
