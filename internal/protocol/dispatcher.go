package protocol

import (
	"auctionhouse/internal/models"
	"auctionhouse/internal/services/auction"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AuctionService is the part of the auction service the protocol drives.
type AuctionService interface {
	ListActive(ctx context.Context) ([]models.Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidder string, price decimal.Decimal) (models.Bid, error)
	CreateAuction(ctx context.Context, params auction.CreateAuctionParams) (models.Auction, error)
}

// Dispatcher maps the three commands onto the auction service. It never
// fails a session: every outcome, including a panic in a handler, comes
// back as a response envelope.
type Dispatcher struct {
	svc    AuctionService
	router *Router
	now    func() time.Time
}

func NewDispatcher(svc AuctionService) *Dispatcher {
	d := &Dispatcher{svc: svc, router: NewRouter(), now: time.Now}
	d.registerHandlers()
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) (res Envelope) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("protocol.handler_panic", zap.String("type", string(env.Type)), zap.Any("panic", r))
			res = TextEnvelope(Error, "Error processing message: internal error")
		}
	}()
	return d.router.Route(ctx, env)
}

// DispatchLine decodes and answers one raw inbound line.
func (d *Dispatcher) DispatchLine(ctx context.Context, line []byte) Envelope {
	env, err := Decode(line)
	if err != nil {
		return TextEnvelope(Error, "Error processing message: "+err.Error())
	}
	return d.Dispatch(ctx, env)
}

func (d *Dispatcher) registerHandlers() {
	Register(d.router, ListAuctions, func(ctx context.Context, _ struct{}) Envelope {
		list, err := d.svc.ListActive(ctx)
		if err != nil {
			zap.L().Error("protocol.list_failed", zap.Error(err))
			return TextEnvelope(ErrorListAuctions, "Error listing auctions: "+err.Error())
		}
		env, err := AuctionListEnvelope(list, d.now())
		if err != nil {
			return TextEnvelope(ErrorListAuctions, "Error listing auctions: "+err.Error())
		}
		return env
	})

	Register(d.router, PlaceBid, func(ctx context.Context, req PlaceBidRequest) Envelope {
		auctionID := req.TargetAuctionID()
		bid, err := d.svc.PlaceBid(ctx, auctionID, *req.Bidder, req.Price.Decimal)
		if err != nil {
			if auction.IsRejection(err) {
				return TextEnvelope(BidRejected, rejectionReason(err))
			}
			zap.L().Error("protocol.place_bid_failed", zap.String("auction_id", auctionID), zap.Error(err))
			return TextEnvelope(Error, "Error processing message: "+err.Error())
		}
		env, err := NewEnvelope(BidAccepted, NewBidDTO(bid))
		if err != nil {
			return TextEnvelope(BidAccepted, "Bid accepted")
		}
		return env
	})

	Register(d.router, CreateAuction, func(ctx context.Context, req CreateAuctionRequest) Envelope {
		a, err := d.svc.CreateAuction(ctx, auction.CreateAuctionParams{
			Name:            *req.Name,
			Description:     req.Description,
			StartingPrice:   req.StartingPrice.Decimal,
			EndTime:         time.Unix(*req.EndTime, 0).UTC(),
			Seller:          *req.Seller,
			MinBidIncrement: req.MinimumBidIncrement.Decimal,
		})
		if err != nil {
			if auction.IsRejection(err) {
				return TextEnvelope(AuctionCreationRejected, rejectionReason(err))
			}
			zap.L().Error("protocol.create_auction_failed", zap.Error(err))
			return TextEnvelope(AuctionCreationRejected, "Error creating auction: "+err.Error())
		}
		return TextEnvelope(AuctionCreationAccepted, a.ID)
	})
}

// rejectionReason turns a business rejection into the text shown to the
// bidder or seller.
func rejectionReason(err error) string {
	var low *auction.BidTooLowError
	switch {
	case errors.As(err, &low):
		return fmt.Sprintf("Bid rejected. Minimum allowed bid is %s (current price %s + minimum increment %s)",
			low.MinimumAllowed, low.CurrentPrice, low.Increment)
	case errors.Is(err, auction.ErrAuctionNotFound):
		return "Auction not found"
	case errors.Is(err, auction.ErrAuctionExpired):
		return "Auction expired"
	case errors.Is(err, auction.ErrAuctionClosed):
		return "Auction closed"
	case errors.Is(err, auction.ErrNameTaken):
		return "Auction name already taken"
	default:
		return err.Error()
	}
}
