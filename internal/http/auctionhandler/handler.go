package auctionhandler

import (
	"auctionhouse/internal/protocol"
	"auctionhouse/internal/services/auction"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc auction.IAuctionService
	now func() time.Time
}

func New(svc auction.IAuctionService) *Handler { return &Handler{svc: svc, now: time.Now} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/auctions", h.list)
	r.GET("/auctions/:id", h.info)
	r.POST("/auctions", h.create)
	r.POST("/auctions/:id/bid", h.bid)
}

// GET /auctions returns every active auction with its bid history.
func (h *Handler) list(c *gin.Context) {
	out, err := h.svc.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, protocol.NewAuctionDTOs(out, h.now()))
}

// GET /auctions/:id
func (h *Handler) info(c *gin.Context) {
	a, err := h.svc.GetAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, protocol.NewAuctionDTO(a, h.now()))
}

// POST /auctions
func (h *Handler) create(c *gin.Context) {
	var body CreateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	a, err := h.svc.CreateAuction(c.Request.Context(), auction.CreateAuctionParams{
		Name:            body.Name,
		Description:     body.Description,
		StartingPrice:   body.StartingPrice.Decimal,
		EndTime:         time.Unix(body.EndTime, 0).UTC(),
		Seller:          body.Seller,
		MinBidIncrement: body.MinimumBidIncrement.Decimal,
	})
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: a.ID})
}

// POST /auctions/:id/bid
func (h *Handler) bid(c *gin.Context) {
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	b, err := h.svc.PlaceBid(c.Request.Context(), c.Param("id"), body.Bidder, body.Price.Decimal)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, protocol.NewBidDTO(b))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrInvalidBid), errors.Is(err, auction.ErrInvalidAuction):
		return http.StatusBadRequest
	case auction.IsRejection(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
