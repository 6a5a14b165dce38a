package store

import (
	"auctionhouse/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a concurrency-safe in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]*models.Auction // key: auctionID
	names    map[string]string          // key: normalized name -> auctionID
	bidIDs   map[string]struct{}        // every recorded bid id
	active   map[string]struct{}        // ids of auctions in the active set
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]*models.Auction),
		names:    make(map[string]string),
		bidIDs:   make(map[string]struct{}),
		active:   make(map[string]struct{}),
	}
}

func (s *MemoryStore) ListActive(_ context.Context) ([]models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Auction, 0, len(s.active))
	for id := range s.active {
		if a, ok := s.auctions[id]; ok {
			out = append(out, snapshot(a))
		}
	}
	// Map iteration order is random; keep listings stable for clients.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", id, ErrNotFound)
	}
	return snapshot(a), nil
}

func (s *MemoryStore) Create(_ context.Context, auction models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auction.ID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.ID, ErrAlreadyExists)
	}
	key := models.NormalizeName(auction.Name)
	if _, ok := s.names[key]; ok {
		return fmt.Errorf("create auction name %q: %w", auction.Name, ErrAlreadyExists)
	}

	stored := auction.Clone()
	stored.Bids = nil
	s.auctions[auction.ID] = &stored
	s.names[key] = auction.ID
	if !stored.Status.IsTerminal() {
		s.active[auction.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) RecordBid(_ context.Context, bid models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[bid.AuctionID]
	if !ok {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, ErrNotFound)
	}
	if _, dup := s.bidIDs[bid.ID]; dup {
		return nil
	}

	bid.Seq = int64(len(a.Bids))
	a.Bids = append(a.Bids, bid)
	a.CurrentPrice = bid.Price
	s.bidIDs[bid.ID] = struct{}{}
	return nil
}

func (s *MemoryStore) NameIsTaken(_ context.Context, normalizedName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.names[normalizedName]
	return ok, nil
}

func (s *MemoryStore) MarkEnded(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return fmt.Errorf("mark auction %s ended: %w", id, ErrNotFound)
	}
	a.Status = models.StatusEnded
	delete(s.active, id)
	return nil
}

// snapshot copies a under the read lock and orders its history.
func snapshot(a *models.Auction) models.Auction {
	out := a.Clone()
	if out.Bids == nil {
		out.Bids = []models.Bid{}
	}
	models.SortBids(out.Bids)
	return out
}
