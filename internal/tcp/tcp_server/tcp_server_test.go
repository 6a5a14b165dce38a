package tcp_server

import (
	"auctionhouse/internal/hub"
	"auctionhouse/internal/locks"
	"auctionhouse/internal/protocol"
	"auctionhouse/internal/services/auction"
	"auctionhouse/internal/store"
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr net.Addr) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(raw string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(raw + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) read() protocol.Envelope {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := c.r.ReadBytes('\n')
	require.NoError(c.t, err)
	env, err := protocol.Decode(line)
	require.NoError(c.t, err)
	return env
}

// readUntil skips pushed lists until a message of type t arrives.
func (c *testClient) readUntil(t protocol.MessageType, skip ...protocol.MessageType) protocol.Envelope {
	c.t.Helper()
	for {
		env := c.read()
		if env.Type == t {
			return env
		}
		require.Contains(c.t, skip, env.Type, "unexpected %s: %s", env.Type, env.Data)
	}
}

func startServer(t *testing.T, maxLine int) (*TcpServer, *hub.Hub) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.NewHub()
	st := store.NewMemoryStore()
	b := hub.NewBroadcaster(h, st, time.Second)
	svc := auction.NewAuctionService(st, locks.NewRegistry(), locks.NewRegistry(), b)
	go b.Run(ctx)

	srv := NewTcpServer(ctx, "127.0.0.1:0", h, b, protocol.NewDispatcher(svc), Options{
		MaxLineBytes: maxLine,
		WriteTimeout: time.Second,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	t.Cleanup(func() {
		_ = srv.Dispose()
		require.NoError(t, <-errCh)
	})
	srv.Addr()
	return srv, h
}

func decodeList(t *testing.T, env protocol.Envelope) []protocol.AuctionDTO {
	t.Helper()
	var list []protocol.AuctionDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	return list
}

func TestTcpServer_CreateBidAndBroadcast(t *testing.T) {
	srv, h := startServer(t, 4096)

	alice := dial(t, srv.Addr())
	bob := dial(t, srv.Addr())

	// Greeting.
	require.Equal(t, protocol.AuctionList, alice.read().Type)
	require.Equal(t, protocol.AuctionList, bob.read().Type)
	require.Eventually(t, func() bool { return h.Len() == 2 }, time.Second, 10*time.Millisecond)

	alice.send(fmt.Sprintf(`{"type":"CREATE_AUCTION","data":{"name":"Vintage Watch","startingPrice":100,"endTime":%d,"seller":"alice","minimumBidIncrement":10}}`,
		time.Now().Add(time.Hour).Unix()))
	created := alice.readUntil(protocol.AuctionCreationAccepted, protocol.AuctionList)
	id, ok := created.Text()
	require.True(t, ok)

	// Bob sees the new auction pushed without asking.
	var pushed []protocol.AuctionDTO
	for len(pushed) == 0 {
		pushed = decodeList(t, bob.readUntil(protocol.AuctionList))
	}
	require.Equal(t, id, pushed[0].ID)

	bob.send(fmt.Sprintf(`{"type":"PLACE_BID","data":{"auctionId":%q,"bidder":"bob","price":105}}`, id))
	rejected := bob.readUntil(protocol.BidRejected, protocol.AuctionList)
	reason, _ := rejected.Text()
	assert.Contains(t, reason, "Minimum allowed bid is 110")

	bob.send(fmt.Sprintf(`{"type":"PLACE_BID","data":{"auctionId":%q,"bidder":"bob","price":110}}`, id))
	bob.readUntil(protocol.BidAccepted, protocol.AuctionList)

	// Alice eventually observes the accepted bid; read() fails on timeout.
	for {
		list := decodeList(t, alice.readUntil(protocol.AuctionList))
		if len(list) == 1 && list[0].CurrentPrice.String() == "110" {
			require.Len(t, list[0].BiddingHistory, 1)
			assert.Equal(t, "bob", list[0].BiddingHistory[0].Bidder)
			break
		}
	}
}

func TestTcpServer_BadInputKeepsSession(t *testing.T) {
	srv, _ := startServer(t, 1024)

	c := dial(t, srv.Addr())
	c.read()

	c.send(`not json`)
	assert.Equal(t, protocol.Error, c.readUntil(protocol.Error, protocol.AuctionList).Type)

	c.send(`{"type":"DANCE"}`)
	assert.Equal(t, protocol.Error, c.readUntil(protocol.Error, protocol.AuctionList).Type)

	c.send(`{"type":"LIST_AUCTIONS"}`)
	assert.Equal(t, protocol.AuctionList, c.read().Type)
}

func TestTcpServer_OversizedLineEndsSession(t *testing.T) {
	srv, h := startServer(t, 1024)

	c := dial(t, srv.Addr())
	c.read()

	c.send(`{"type":"LIST_AUCTIONS","data":"` + strings.Repeat("x", 2048) + `"}`)
	env := c.read()
	assert.Equal(t, protocol.Error, env.Type)

	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestTcpServer_DisconnectLeavesHub(t *testing.T) {
	srv, h := startServer(t, 1024)

	c := dial(t, srv.Addr())
	c.read()
	require.Equal(t, 1, h.Len())

	require.NoError(t, c.conn.Close())
	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 10*time.Millisecond)
}
