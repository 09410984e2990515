package handlers

import (
	"context"
	"net/http"
	"time"

	"service-auction/internal/api/middleware"
	"service-auction/internal/domain"
	"service-auction/internal/services"
	"service-auction/pkg/logger"
	"service-auction/pkg/utils"

	"github.com/labstack/echo/v4"
)

type AuctionService interface {
	CreateAuction(ctx context.Context, caller domain.Identity, p services.CreateAuctionParams) (*domain.Auction, error)
	FinalizeAuction(ctx context.Context, auctionID string, caller domain.Identity) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
}

type BidService interface {
	PlaceBid(ctx context.Context, auctionID string, bidder domain.Identity, amount uint64) (*domain.Auction, error)
}

type AuctionHandler struct {
	auctions AuctionService
	bids     BidService
	audit    domain.AuditRepository
	decimals int32
	log      logger.Logger
}

type CreateAuctionRequest struct {
	Agent               string              `json:"agent"`
	Terms               domain.ServiceTerms `json:"terms"`
	AuctionType         string              `json:"auction_type"`
	StartingPrice       string              `json:"starting_price"`
	ReservePrice        string              `json:"reserve_price"`
	MinimumBidIncrement string              `json:"minimum_bid_increment"`
	AuctionEndTime      time.Time           `json:"auction_end_time"`
}

type PlaceBidRequest struct {
	Amount string `json:"amount"`
}

type BidResponse struct {
	Bidder    string    `json:"bidder"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	IsWinning bool      `json:"is_winning"`
}

type AuctionResponse struct {
	AuctionID           string              `json:"auction_id"`
	Agent               string              `json:"agent"`
	Creator             string              `json:"creator"`
	AuctionType         string              `json:"auction_type"`
	Terms               domain.ServiceTerms `json:"terms"`
	StartingPrice       string              `json:"starting_price"`
	ReservePrice        string              `json:"reserve_price"`
	MinimumBidIncrement string              `json:"minimum_bid_increment"`
	CurrentPrice        string              `json:"current_price"`
	CurrentWinner       string              `json:"current_winner,omitempty"`
	AuctionEndTime      time.Time           `json:"auction_end_time"`
	Extensions          int                 `json:"extensions"`
	TotalBids           uint32              `json:"total_bids"`
	Status              string              `json:"status"`
	Winner              string              `json:"winner,omitempty"`
	FailureReason       string              `json:"failure_reason,omitempty"`
	Bids                []BidResponse       `json:"bids"`
	CreatedAt           time.Time           `json:"created_at"`
	EndedAt             *time.Time          `json:"ended_at,omitempty"`
}

func NewAuctionHandler(auctions AuctionService, bids BidService, audit domain.AuditRepository,
	decimals int32, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		bids:     bids,
		audit:    audit,
		decimals: decimals,
		log:      log,
	}
}

// Register mounts the auction routes. Mutating routes go through auth.
func (h *AuctionHandler) Register(api *echo.Group, auth echo.MiddlewareFunc) {
	api.POST("/auctions", h.CreateAuction, auth)
	api.GET("/auctions/:id", h.GetAuction)
	api.POST("/auctions/:id/bids", h.PlaceBid, auth)
	api.POST("/auctions/:id/finalize", h.FinalizeAuction, auth)
	if h.audit != nil {
		api.GET("/auctions/:id/events", h.GetAuctionEvents)
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	auctionType, ok := domain.ParseAuctionType(req.AuctionType)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown auction type"})
	}
	if req.Agent == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Agent is required"})
	}

	params := services.CreateAuctionParams{
		Agent:          req.Agent,
		Terms:          req.Terms,
		AuctionType:    auctionType,
		AuctionEndTime: req.AuctionEndTime,
	}
	var err error
	if params.StartingPrice, err = utils.ParseAmount(req.StartingPrice, h.decimals); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid starting_price"})
	}
	if req.ReservePrice != "" {
		if params.ReservePrice, err = utils.ParseAmount(req.ReservePrice, h.decimals); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid reserve_price"})
		}
	}
	if params.MinimumBidIncrement, err = utils.ParseAmount(req.MinimumBidIncrement, h.decimals); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid minimum_bid_increment"})
	}

	auction, err := h.auctions.CreateAuction(c.Request().Context(), middleware.IdentityFrom(c), params)
	if err != nil {
		return h.errorResponse(c, "create auction", err)
	}

	h.log.Info("Auction created successfully", "auction_id", auction.ID)
	return c.JSON(http.StatusCreated, h.toResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctions.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, "get auction", err)
	}
	return c.JSON(http.StatusOK, h.toResponse(auction))
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	amount, err := utils.ParseAmount(req.Amount, h.decimals)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid amount"})
	}

	auction, err := h.bids.PlaceBid(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c), amount)
	if err != nil {
		return h.errorResponse(c, "place bid", err)
	}
	return c.JSON(http.StatusOK, h.toResponse(auction))
}

func (h *AuctionHandler) FinalizeAuction(c echo.Context) error {
	auction, err := h.auctions.FinalizeAuction(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c))
	if err != nil {
		return h.errorResponse(c, "finalize auction", err)
	}
	return c.JSON(http.StatusOK, h.toResponse(auction))
}

func (h *AuctionHandler) GetAuctionEvents(c echo.Context) error {
	events, err := h.audit.GetAuctionEvents(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, "get auction events", err)
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

// StatusFor maps an error category to its HTTP status.
func StatusFor(err error) int {
	switch domain.CategoryOf(err) {
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryAuthorization:
		return http.StatusForbidden
	case domain.CategoryStateConflict, domain.CategoryConflict:
		return http.StatusConflict
	case domain.CategoryNotFound:
		return http.StatusNotFound
	case domain.CategoryRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (h *AuctionHandler) errorResponse(c echo.Context, op string, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "op", op, "error", err)
		return c.JSON(status, map[string]string{
			"error": "internal error",
			"code":  domain.CategoryOf(err).String(),
		})
	}
	return c.JSON(status, map[string]string{
		"error": err.Error(),
		"code":  domain.CategoryOf(err).String(),
	})
}

func (h *AuctionHandler) toResponse(a *domain.Auction) AuctionResponse {
	bids := make([]BidResponse, 0, len(a.Bids))
	for _, b := range a.Bids {
		bids = append(bids, BidResponse{
			Bidder:    b.Bidder,
			Amount:    utils.FormatAmount(b.Amount, h.decimals),
			Timestamp: b.Timestamp,
			IsWinning: b.IsWinning,
		})
	}

	return AuctionResponse{
		AuctionID:           a.ID,
		Agent:               a.Agent,
		Creator:             a.Creator,
		AuctionType:         a.AuctionType.String(),
		Terms:               a.Terms,
		StartingPrice:       utils.FormatAmount(a.StartingPrice, h.decimals),
		ReservePrice:        utils.FormatAmount(a.ReservePrice, h.decimals),
		MinimumBidIncrement: utils.FormatAmount(a.MinimumBidIncrement, h.decimals),
		CurrentPrice:        utils.FormatAmount(a.CurrentPrice, h.decimals),
		CurrentWinner:       a.CurrentWinner,
		AuctionEndTime:      a.AuctionEndTime,
		Extensions:          a.Extensions,
		TotalBids:           a.TotalBids,
		Status:              a.Status.String(),
		Winner:              a.Winner,
		FailureReason:       a.FailureReason,
		Bids:                bids,
		CreatedAt:           a.CreatedAt,
		EndedAt:             a.EndedAt,
	}
}
