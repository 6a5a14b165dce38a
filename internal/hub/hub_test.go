package hub

import (
	"auctionhouse/internal/models"
	"auctionhouse/internal/protocol"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id string

	mu       sync.Mutex
	received []protocol.Envelope
	sendErr  error
	closed   bool
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Send(env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, env)
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func (f *fakeSession) last() protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received[len(f.received)-1]
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type staticLister struct {
	mu   sync.Mutex
	list []models.Auction
	err  error
}

func (s *staticLister) ListActive(context.Context) ([]models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Auction(nil), s.list...), s.err
}

func (s *staticLister) set(list ...models.Auction) {
	s.mu.Lock()
	s.list = list
	s.mu.Unlock()
}

func testAuction(id string, price int64) models.Auction {
	now := time.Now()
	return models.Auction{
		ID:              id,
		Name:            "auction " + id,
		StartingPrice:   decimal.NewFromInt(1),
		CurrentPrice:    decimal.NewFromInt(price),
		MinBidIncrement: decimal.NewFromInt(1),
		StartTime:       now.Add(-time.Minute),
		EndTime:         now.Add(time.Hour),
		CreatedAt:       now.Add(-time.Minute),
		Status:          models.StatusActive,
	}
}

func TestHub_JoinLeave(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a, b := &fakeSession{id: "a"}, &fakeSession{id: "b"}
	h.Join(a)
	h.Join(b)
	require.Equal(t, 2, h.Len())

	h.Leave("a")
	require.Equal(t, 1, h.Len())
	assert.False(t, a.isClosed())

	sessions := h.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "b", sessions[0].ID())

	h.CloseAll()
	assert.Zero(t, h.Len())
	assert.True(t, b.isClosed())
}

func TestHub_FailingSinkDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	h := NewHub()
	var healthy []*fakeSession
	for i := 0; i < 5; i++ {
		s := &fakeSession{id: fmt.Sprintf("ok-%d", i)}
		healthy = append(healthy, s)
		h.Join(s)
	}
	broken := &fakeSession{id: "broken", sendErr: errors.New("broken pipe")}
	h.Join(broken)

	delivered := h.Broadcast(protocol.TextEnvelope(protocol.AuctionList, "x"))
	assert.Equal(t, 5, delivered)
	for _, s := range healthy {
		assert.Equal(t, 1, s.count(), s.id)
	}
	assert.True(t, broken.isClosed())
	assert.Equal(t, 5, h.Len())
}

func TestBroadcaster_BroadcastActiveAuctions(t *testing.T) {
	t.Parallel()

	h := NewHub()
	s := &fakeSession{id: "s"}
	h.Join(s)
	lister := &staticLister{}
	lister.set(testAuction("a1", 5))

	b := NewBroadcaster(h, lister, time.Second)
	require.NoError(t, b.BroadcastActiveAuctions(context.Background()))

	env := s.last()
	assert.Equal(t, protocol.AuctionList, env.Type)
	var list []protocol.AuctionDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)
	assert.NotNil(t, list[0].BiddingHistory)
}

func TestBroadcaster_ListFailureSendsNothing(t *testing.T) {
	t.Parallel()

	h := NewHub()
	s := &fakeSession{id: "s"}
	h.Join(s)

	b := NewBroadcaster(h, &staticLister{err: errors.New("store down")}, time.Second)
	require.Error(t, b.BroadcastActiveAuctions(context.Background()))
	assert.Zero(t, s.count())
	assert.Equal(t, 1, h.Len())
}

func TestBroadcaster_NotifyEventuallyDeliversLatestState(t *testing.T) {
	t.Parallel()

	h := NewHub()
	s := &fakeSession{id: "s"}
	h.Join(s)
	lister := &staticLister{}

	b := NewBroadcaster(h, lister, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	for i := int64(1); i <= 50; i++ {
		lister.set(testAuction("a1", i))
		b.Notify()
	}

	require.Eventually(t, func() bool {
		if s.count() == 0 {
			return false
		}
		var list []protocol.AuctionDTO
		if err := json.Unmarshal(s.last().Data, &list); err != nil || len(list) != 1 {
			return false
		}
		return list[0].CurrentPrice.Equal(decimal.NewFromInt(50))
	}, 2*time.Second, 10*time.Millisecond)

	// Coalesced: never more broadcasts than notifications.
	assert.LessOrEqual(t, s.count(), 50)
}

func TestBroadcaster_NotifyNeverBlocks(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(NewHub(), &staticLister{}, time.Second)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Notify()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked without a running worker")
	}
}

func TestBroadcaster_Welcome(t *testing.T) {
	t.Parallel()

	h := NewHub()
	lister := &staticLister{}
	lister.set(testAuction("a1", 7), testAuction("a2", 9))
	b := NewBroadcaster(h, lister, time.Second)

	s := &fakeSession{id: "new"}
	h.Join(s)
	require.NoError(t, b.Welcome(context.Background(), s))

	require.Equal(t, 1, s.count())
	var list []protocol.AuctionDTO
	require.NoError(t, json.Unmarshal(s.last().Data, &list))
	assert.Len(t, list, 2)
}
