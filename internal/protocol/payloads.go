package protocol

import (
	"auctionhouse/internal/models"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────── Command payloads ─────────────────────────────

// PlaceBidRequest is the body of PLACE_BID. Older clients name the auction
// id productId; either field is accepted.
type PlaceBidRequest struct {
	AuctionID *string        `json:"auctionId,omitempty"`
	ProductID *string        `json:"productId,omitempty"`
	Bidder    *string        `json:"bidder"    validate:"required"`
	Price     *models.Amount `json:"price"     validate:"required"`
}

// Validate runs after the tag checks.
func (r PlaceBidRequest) Validate() error {
	if r.AuctionID == nil && r.ProductID == nil {
		return errors.New("auctionId is required")
	}
	return nil
}

// TargetAuctionID is the auction the bid is for; auctionId wins when both
// are sent.
func (r PlaceBidRequest) TargetAuctionID() string {
	if r.AuctionID != nil {
		return *r.AuctionID
	}
	if r.ProductID != nil {
		return *r.ProductID
	}
	return ""
}

// CreateAuctionRequest is the body of CREATE_AUCTION. EndTime is epoch seconds.
type CreateAuctionRequest struct {
	Name                *string        `json:"name"                validate:"required"`
	Description         string         `json:"description,omitempty"`
	StartingPrice       *models.Amount `json:"startingPrice"       validate:"required"`
	EndTime             *int64         `json:"endTime"             validate:"required"`
	Seller              *string        `json:"seller"              validate:"required"`
	MinimumBidIncrement *models.Amount `json:"minimumBidIncrement" validate:"required"`
}

// ──────────────────────────── Response bodies ──────────────────────────────

type BidDTO struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auctionId"`
	Bidder    string          `json:"bidder"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

type AuctionDTO struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	StartingPrice       decimal.Decimal `json:"startingPrice"`
	CurrentPrice        decimal.Decimal `json:"currentPrice"`
	StartTime           int64           `json:"startTime"`
	EndTime             int64           `json:"endTime"`
	CreatedAt           int64           `json:"createdAt"`
	Seller              string          `json:"seller"`
	MinimumBidIncrement decimal.Decimal `json:"minimumBidIncrement"`
	Status              models.Status   `json:"status"`
	BiddingHistory      []BidDTO        `json:"biddingHistory"`
}

func NewBidDTO(b models.Bid) BidDTO {
	return BidDTO{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		Bidder:    b.Bidder,
		Price:     b.Price,
		Timestamp: b.Timestamp.Unix(),
	}
}

// NewAuctionDTO renders a with its status as of now.
func NewAuctionDTO(a models.Auction, now time.Time) AuctionDTO {
	history := make([]BidDTO, 0, len(a.Bids))
	for _, b := range a.Bids {
		history = append(history, NewBidDTO(b))
	}
	return AuctionDTO{
		ID:                  a.ID,
		Name:                a.Name,
		Description:         a.Description,
		StartingPrice:       a.StartingPrice,
		CurrentPrice:        a.CurrentPrice,
		StartTime:           a.StartTime.Unix(),
		EndTime:             a.EndTime.Unix(),
		CreatedAt:           a.CreatedAt.Unix(),
		Seller:              a.Seller,
		MinimumBidIncrement: a.MinBidIncrement,
		Status:              a.StatusAt(now),
		BiddingHistory:      history,
	}
}

func NewAuctionDTOs(list []models.Auction, now time.Time) []AuctionDTO {
	out := make([]AuctionDTO, 0, len(list))
	for _, a := range list {
		out = append(out, NewAuctionDTO(a, now))
	}
	return out
}

// AuctionListEnvelope is the LIST_AUCTIONS response and broadcast.
func AuctionListEnvelope(list []models.Auction, now time.Time) (Envelope, error) {
	return NewEnvelope(AuctionList, NewAuctionDTOs(list, now))
}
