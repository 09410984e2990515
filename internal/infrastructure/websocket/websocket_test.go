package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"service-auction/internal/domain"
	"service-auction/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	userID    string
	auctionID string
	sent      []string
	closed    bool
}

func (c *fakeConn) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	c.sent = append(c.sent, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) UserID() string    { return c.userID }
func (c *fakeConn) AuctionID() string { return c.auctionID }

func TestConnectionManager(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	a1 := &fakeConn{userID: "alice", auctionID: "a1"}
	a2 := &fakeConn{userID: "alice", auctionID: "a2"}
	b1 := &fakeConn{userID: "bob", auctionID: "a1"}

	require.NoError(t, cm.RegisterConnection(a1))
	require.NoError(t, cm.RegisterConnection(a2))
	require.NoError(t, cm.RegisterConnection(b1))

	assert.Len(t, cm.GetConnectionsForAuction("a1"), 2)
	assert.Len(t, cm.GetConnectionsForUser("alice"), 2)

	require.NoError(t, cm.BroadcastToAuction("a1", map[string]string{"type": "bid_update"}))
	assert.Equal(t, []string{`{"type":"bid_update"}`}, a1.sent)
	assert.Equal(t, []string{`{"type":"bid_update"}`}, b1.sent)
	assert.Empty(t, a2.sent)

	require.NoError(t, cm.NotifyUser("alice", map[string]string{"type": "hello"}))
	assert.Len(t, a1.sent, 2)
	assert.Len(t, a2.sent, 1)

	require.NoError(t, cm.CloseAndUnregisterConnections("a1"))
	assert.True(t, a1.closed)
	assert.True(t, b1.closed)
	assert.False(t, a2.closed)
	assert.Empty(t, cm.GetConnectionsForAuction("a1"))
	assert.Nil(t, cm.GetConnectionsForUser("bob"))
	assert.Len(t, cm.GetConnectionsForUser("alice"), 1)
}

func TestConnectionManagerReplace(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	first := &fakeConn{userID: "alice", auctionID: "a1"}
	second := &fakeConn{userID: "alice", auctionID: "a1"}

	require.NoError(t, cm.RegisterConnection(first))
	require.NoError(t, cm.RegisterConnection(second))
	assert.True(t, first.closed)

	// The replaced connection's reader unregistering must not drop the new one.
	require.NoError(t, cm.UnregisterConnection(first))
	conns := cm.GetConnectionsForAuction("a1")
	require.Len(t, conns, 1)
	assert.Same(t, second, conns[0].(*fakeConn))

	require.NoError(t, cm.UnregisterConnection(second))
	assert.Empty(t, cm.GetConnectionsForAuction("a1"))
	assert.Nil(t, cm.GetConnectionsForUser("alice"))
}

type stubAuth struct{}

func (stubAuth) Authenticate(token string) (domain.Identity, error) {
	if strings.HasPrefix(token, "tok-") {
		return domain.Identity{ID: strings.TrimPrefix(token, "tok-"), Signer: true}, nil
	}
	return domain.Identity{}, errors.New("bad token")
}

type stubAuctions struct {
	mu      sync.Mutex
	auction domain.Auction
}

func (s *stubAuctions) GetAuction(_ context.Context, id string) (*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.auction.ID {
		return nil, domain.ErrAuctionNotFound
	}
	a := s.auction
	return &a, nil
}

func (s *stubAuctions) PlaceBid(_ context.Context, id string, bidder domain.Identity, amount uint64) (*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount <= s.auction.CurrentPrice {
		return nil, domain.ErrInvalidBid
	}
	s.auction.CurrentPrice = amount
	s.auction.CurrentWinner = bidder.ID
	s.auction.TotalBids++
	a := s.auction
	return &a, nil
}

func newWSServer(t *testing.T, status domain.AuctionStatus) (*httptest.Server, *ConnectionManager) {
	t.Helper()
	auctions := &stubAuctions{auction: domain.Auction{
		ID:             "a1",
		CurrentPrice:   100,
		AuctionEndTime: time.Now().Add(time.Hour),
		Status:         status,
	}}
	cm := NewConnectionManager(logger.NewNop())
	h := NewWebSocketHandler(auctions, auctions, stubAuth{}, cm, 2, logger.NewNop())

	router := mux.NewRouter()
	router.HandleFunc("/ws/auction/{auctionID}", h.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, cm
}

func dial(t *testing.T, srv *httptest.Server, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandlerBidFlow(t *testing.T) {
	srv, cm := newWSServer(t, domain.AuctionActive)

	conn, _, err := dial(t, srv, "/ws/auction/a1?token=tok-alice")
	require.NoError(t, err)
	defer conn.Close()

	state := readMessage(t, conn)
	assert.Equal(t, "auction_state", state["type"])
	assert.Equal(t, "1", state["current_price"])
	require.Eventually(t, func() bool { return len(cm.GetConnectionsForAuction("a1")) == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "1.20"}))
	accepted := readMessage(t, conn)
	assert.Equal(t, "bid_accepted", accepted["type"])
	assert.Equal(t, "1.2", accepted["current_price"])
	assert.Equal(t, "alice", accepted["current_winner"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "1.10"}))
	rejected := readMessage(t, conn)
	assert.Equal(t, "error", rejected["type"])
	assert.Equal(t, "validation", rejected["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "abc"}))
	assert.Equal(t, "error", readMessage(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readMessage(t, conn)["type"])
}

func TestHandlerRejectsConnections(t *testing.T) {
	srv, _ := newWSServer(t, domain.AuctionActive)

	_, resp, err := dial(t, srv, "/ws/auction/a1")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "/ws/auction/missing?token=tok-alice")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	closed, _ := newWSServer(t, domain.AuctionSettled)
	_, resp, err = dial(t, closed, "/ws/auction/a1?token=tok-alice")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
