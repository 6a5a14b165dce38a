package store

import (
	"auctionhouse/internal/models"
	"context"
	"errors"
)

//go:generate mockgen -source=store.go -destination=mock_store.go -package=store

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Store owns the canonical auction and bid records. Every read returns an
// independent copy; callers write mutations back through the Store.
//
// The primitives are individually atomic but a read-then-write sequence on
// one auction must be serialized by the caller.
type Store interface {
	// ListActive returns every auction in the active set with its bid
	// history populated.
	ListActive(ctx context.Context) ([]models.Auction, error)
	// Get returns one auction with its bid history, or ErrNotFound.
	Get(ctx context.Context, id string) (models.Auction, error)
	// Create persists a new auction. ErrAlreadyExists is returned when the id
	// or the normalized name is already present.
	Create(ctx context.Context, auction models.Auction) error
	// RecordBid appends the bid to its auction's history and sets the
	// auction's current price to the bid price as one unit. A bid id that was
	// already recorded is a no-op.
	RecordBid(ctx context.Context, bid models.Bid) error
	// NameIsTaken expects a name already passed through models.NormalizeName.
	NameIsTaken(ctx context.Context, normalizedName string) (bool, error)
	// MarkEnded stores the ended status and drops the auction from the
	// active set.
	MarkEnded(ctx context.Context, id string) error
}
