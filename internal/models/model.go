package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
	StatusSold      Status = "sold"
)

// IsTerminal reports whether no further bids can ever be accepted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusEnded, StatusCancelled, StatusSold:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusEnded, StatusCancelled, StatusSold:
		return true
	}
	return false
}

// Auction is a sellable item with a rising price and an end time.
type Auction struct {
	ID              string
	Name            string
	Description     string
	StartingPrice   decimal.Decimal
	CurrentPrice    decimal.Decimal
	StartTime       time.Time
	EndTime         time.Time
	Seller          string
	MinBidIncrement decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	Bids            []Bid
}

// Bid is an offer recorded against one auction.
type Bid struct {
	ID        string
	AuctionID string
	Bidder    string
	Price     decimal.Decimal
	Timestamp time.Time
	// Seq is the per-auction insertion order, starting at 0.
	Seq int64
}

// MinimumAllowedBid is the lowest price the next bid may offer.
func (a Auction) MinimumAllowedBid() decimal.Decimal {
	return a.CurrentPrice.Add(a.MinBidIncrement)
}

// HasEnded reports whether the auction stopped accepting bids at now.
func (a Auction) HasEnded(now time.Time) bool {
	return a.Status.IsTerminal() || !now.Before(a.EndTime)
}

// StatusAt derives the presented status. Terminal statuses are stored;
// pending/active/ended are otherwise derived from the clock.
func (a Auction) StatusAt(now time.Time) Status {
	if a.Status.IsTerminal() {
		return a.Status
	}
	switch {
	case !now.Before(a.EndTime):
		return StatusEnded
	case !now.Before(a.StartTime):
		return StatusActive
	default:
		return StatusPending
	}
}

// Clone returns a copy that shares no mutable state with a.
func (a Auction) Clone() Auction {
	out := a
	if a.Bids != nil {
		out.Bids = append([]Bid(nil), a.Bids...)
	}
	return out
}

// SortBids orders bids most recent first; equal timestamps put the later
// insertion first.
func SortBids(bids []Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].Timestamp.Equal(bids[j].Timestamp) {
			return bids[i].Timestamp.After(bids[j].Timestamp)
		}
		return bids[i].Seq > bids[j].Seq
	})
}
