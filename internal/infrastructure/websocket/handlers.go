package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"service-auction/internal/auth"
	"service-auction/internal/domain"
	"service-auction/pkg/logger"
	"service-auction/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID string, bidder domain.Identity, amount uint64) (*domain.Auction, error)
}

type AuctionReader interface {
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
}

type Authenticator interface {
	Authenticate(token string) (domain.Identity, error)
}

// WebSocketHandler accepts bidder connections for one auction and turns
// place_bid messages into BidService calls.
type WebSocketHandler struct {
	bids        BidPlacer
	auctions    AuctionReader
	auth        Authenticator
	connManager domain.ConnectionManager
	decimals    int32
	log         logger.Logger
}

func NewWebSocketHandler(bids BidPlacer, auctions AuctionReader, authenticator Authenticator,
	connManager domain.ConnectionManager, decimals int32, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bids:        bids,
		auctions:    auctions,
		auth:        authenticator,
		connManager: connManager,
		decimals:    decimals,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	identity, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	auction, err := h.auctions.GetAuction(r.Context(), auctionID)
	if err != nil {
		h.log.Info("Rejected connection - auction not found", "auction_id", auctionID, "error", err)
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}
	if auction.Status != domain.AuctionActive {
		h.log.Info("Rejected connection - auction closed", "auction_id", auctionID, "status", auction.Status)
		http.Error(w, "auction is not active", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, identity.ID, auctionID)
	if err := h.connManager.RegisterConnection(wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return
	}

	_ = wsConn.Send(h.snapshot("auction_state", auction))

	go h.handleMessages(wsConn, identity)
}

func (h *WebSocketHandler) authenticate(r *http.Request) (domain.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		if token, err = auth.BearerToken(r.Header.Get("Authorization")); err != nil {
			return domain.Identity{}, err
		}
	}
	return h.auth.Authenticate(token)
}

type clientMessage struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, identity domain.Identity) {
	defer func() {
		_ = h.connManager.UnregisterConnection(conn)
		_ = conn.Close()
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	for {
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Error("Failed to read message", "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, identity, msg)
		case "ping":
			_ = conn.Send(map[string]string{"type": "pong"})
		default:
			_ = conn.Send(map[string]string{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, identity domain.Identity, msg clientMessage) {
	amount, err := utils.ParseAmount(msg.Amount, h.decimals)
	if err != nil {
		_ = conn.Send(map[string]string{"type": "error", "code": domain.CategoryValidation.String(), "message": "invalid amount"})
		return
	}

	auction, err := h.bids.PlaceBid(context.Background(), conn.AuctionID(), identity, amount)
	if err != nil {
		_ = conn.Send(map[string]string{
			"type":    "error",
			"code":    domain.CategoryOf(err).String(),
			"message": err.Error(),
		})
		return
	}

	_ = conn.Send(h.snapshot("bid_accepted", auction))
}

func (h *WebSocketHandler) snapshot(msgType string, a *domain.Auction) map[string]interface{} {
	return map[string]interface{}{
		"type":           msgType,
		"auction_id":     a.ID,
		"status":         a.Status.String(),
		"current_price":  utils.FormatAmount(a.CurrentPrice, h.decimals),
		"current_winner": a.CurrentWinner,
		"end_time":       a.AuctionEndTime,
		"total_bids":     a.TotalBids,
	}
}

// WebSocketConnection serializes writes; gorilla connections allow one
// concurrent writer.
type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	writeMu   sync.Mutex
}

func NewWebSocketConnection(conn *websocket.Conn, userID, auctionID string) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	_ = wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}
