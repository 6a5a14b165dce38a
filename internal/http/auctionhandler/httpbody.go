package auctionhandler

import "auctionhouse/internal/models"

type CreateAuctionBody struct {
	Name                string         `json:"name"                binding:"required"`
	Description         string         `json:"description"`
	StartingPrice       *models.Amount `json:"startingPrice"       binding:"required"`
	EndTime             int64          `json:"endTime"             binding:"required,gt=0"`
	Seller              string         `json:"seller"              binding:"required"`
	MinimumBidIncrement *models.Amount `json:"minimumBidIncrement" binding:"required"`
}

type PlaceBidBody struct {
	Bidder string         `json:"bidder" binding:"required"`
	Price  *models.Amount `json:"price"  binding:"required"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
