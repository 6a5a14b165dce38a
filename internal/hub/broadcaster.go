package hub

import (
	"auctionhouse/internal/models"
	"auctionhouse/internal/protocol"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Lister supplies the active auctions to broadcast.
type Lister interface {
	ListActive(ctx context.Context) ([]models.Auction, error)
}

// Broadcaster pushes the full active-auction list to every session.
//
// Notify only raises a flag; Run turns raised flags into broadcasts. Several
// notifications arriving while a broadcast is in flight collapse into one
// more broadcast, which reads the store afresh, so no session is left with
// stale data.
type Broadcaster struct {
	// mu orders whole snapshot-and-send rounds, so a session never receives
	// an older list after a newer one.
	mu      sync.Mutex
	hub     *Hub
	lister  Lister
	timeout time.Duration
	now     func() time.Time
	pending chan struct{}
}

func NewBroadcaster(h *Hub, lister Lister, timeout time.Duration) *Broadcaster {
	return &Broadcaster{
		hub:     h,
		lister:  lister,
		timeout: timeout,
		now:     time.Now,
		pending: make(chan struct{}, 1),
	}
}

// Notify requests a broadcast. It never blocks.
func (b *Broadcaster) Notify() {
	select {
	case b.pending <- struct{}{}:
	default:
	}
}

// Run serves Notify requests until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.pending:
			bctx, cancel := context.WithTimeout(ctx, b.timeout)
			if err := b.BroadcastActiveAuctions(bctx); err != nil {
				zap.L().Error("hub.broadcast_failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// BroadcastActiveAuctions loads the active list and sends it now.
func (b *Broadcaster) BroadcastActiveAuctions(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	env, err := b.Snapshot(ctx)
	if err != nil {
		return err
	}
	delivered := b.hub.Broadcast(env)
	zap.L().Debug("hub.broadcast", zap.Int("delivered", delivered))
	return nil
}

// Welcome sends the current list to one session that has already joined
// the hub.
func (b *Broadcaster) Welcome(ctx context.Context, s Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	env, err := b.Snapshot(ctx)
	if err != nil {
		return err
	}
	return s.Send(env)
}

// Snapshot builds the LIST_AUCTIONS message without sending it.
func (b *Broadcaster) Snapshot(ctx context.Context) (protocol.Envelope, error) {
	list, err := b.lister.ListActive(ctx)
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("broadcast: list active auctions: %w", err)
	}
	return protocol.AuctionListEnvelope(list, b.now())
}
