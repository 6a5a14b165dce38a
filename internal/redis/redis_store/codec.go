package redis_store

import (
	"auctionhouse/internal/models"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// auctionFields flattens a into HSET field/value pairs.
func auctionFields(a models.Auction) []any {
	return []any{
		"id", a.ID,
		"name", a.Name,
		"description", a.Description,
		"starting_price", a.StartingPrice.String(),
		"current_price", a.CurrentPrice.String(),
		"start_time", formatTime(a.StartTime),
		"end_time", formatTime(a.EndTime),
		"created_at", formatTime(a.CreatedAt),
		"seller", a.Seller,
		"min_bid_increment", a.MinBidIncrement.String(),
		"status", string(a.Status),
	}
}

func bidFields(b models.Bid) []any {
	return []any{
		"id", b.ID,
		"auction_id", b.AuctionID,
		"bidder", b.Bidder,
		"price", b.Price.String(),
		"timestamp", formatTime(b.Timestamp),
	}
}

// fieldReader collects the first parse error so decoders stay linear.
type fieldReader struct {
	m   map[string]string
	err error
}

func (r *fieldReader) str(k string) string { return r.m[k] }

func (r *fieldReader) dec(k string) decimal.Decimal {
	if r.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.m[k])
	if err != nil {
		r.err = fmt.Errorf("field %s: %w", k, err)
	}
	return d
}

func (r *fieldReader) ts(k string) time.Time {
	if r.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, r.m[k])
	if err != nil {
		r.err = fmt.Errorf("field %s: %w", k, err)
	}
	return t
}

func (r *fieldReader) i64(k string) int64 {
	if r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(r.m[k], 10, 64)
	if err != nil {
		r.err = fmt.Errorf("field %s: %w", k, err)
	}
	return n
}

func decodeAuction(m map[string]string) (models.Auction, error) {
	r := &fieldReader{m: m}
	a := models.Auction{
		ID:              r.str("id"),
		Name:            r.str("name"),
		Description:     r.str("description"),
		StartingPrice:   r.dec("starting_price"),
		CurrentPrice:    r.dec("current_price"),
		StartTime:       r.ts("start_time"),
		EndTime:         r.ts("end_time"),
		CreatedAt:       r.ts("created_at"),
		Seller:          r.str("seller"),
		MinBidIncrement: r.dec("min_bid_increment"),
		Status:          models.Status(r.str("status")),
	}
	if r.err != nil {
		return models.Auction{}, fmt.Errorf("decode auction %s: %w", m["id"], r.err)
	}
	return a, nil
}

func decodeBid(m map[string]string) (models.Bid, error) {
	r := &fieldReader{m: m}
	b := models.Bid{
		ID:        r.str("id"),
		AuctionID: r.str("auction_id"),
		Bidder:    r.str("bidder"),
		Price:     r.dec("price"),
		Timestamp: r.ts("timestamp"),
		Seq:       r.i64("seq"),
	}
	if r.err != nil {
		return models.Bid{}, fmt.Errorf("decode bid %s: %w", m["id"], r.err)
	}
	return b, nil
}
