package services

import (
	"context"

	"service-auction/internal/domain"
	"service-auction/pkg/logger"
)

// EventListener fans audit events out to the websocket clients watching an
// auction and closes their connections once the auction reaches a terminal
// state.
type EventListener struct {
	broadcaster       domain.AuctionBroadcaster
	notifier          domain.UserNotifier
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager, broadcaster domain.AuctionBroadcaster,
	notifier domain.UserNotifier, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		notifier:          notifier,
		connectionManager: connectionManager,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToAuditEvents(ctx, el.HandleEvent)
}

func (el *EventListener) HandleEvent(event *domain.AuditEvent) error {
	el.log.Debug("Handling audit event", "kind", event.Kind, "auction_id", event.AuctionID)

	switch event.Kind {
	case domain.EventBidPlaced:
		el.notifyOutbid(event)
		return el.broadcast(event, "bid_update")
	case domain.EventAuctionExtended:
		return el.broadcast(event, "auction_extended")
	case domain.EventExcessiveBidding:
		// Monitoring signal only.
		return nil
	case domain.EventAuctionCreated:
		return nil
	}

	if event.Kind.Terminal() {
		return el.handleAuctionEnded(event)
	}

	el.log.Warn("Unknown audit event kind", "kind", event.Kind, "auction_id", event.AuctionID)
	return nil
}

func (el *EventListener) broadcast(event *domain.AuditEvent, msgType string) error {
	return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":      msgType,
		"data":      event.Payload,
		"timestamp": event.Timestamp,
	})
}

// notifyOutbid tells the previous winner they lost the lead. Failures are
// logged; the room broadcast still goes out.
func (el *EventListener) notifyOutbid(event *domain.AuditEvent) {
	previous, _ := event.Payload["previous_winner"].(string)
	if previous == "" || el.notifier == nil {
		return
	}
	err := el.notifier.NotifyUser(context.Background(), previous, map[string]interface{}{
		"type":       "outbid",
		"auction_id": event.AuctionID,
		"data":       event.Payload,
		"timestamp":  event.Timestamp,
	})
	if err != nil {
		el.log.Error("Failed to notify outbid user", "user_id", previous, "auction_id", event.AuctionID, "error", err)
	}
}

func (el *EventListener) handleAuctionEnded(event *domain.AuditEvent) error {
	// Final broadcast
	if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":      "auction_ended",
		"outcome":   event.Kind,
		"data":      event.Payload,
		"timestamp": event.Timestamp,
	}); err != nil {
		el.log.Error("Failed to broadcast auction ended event", "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.AuctionID); err != nil {
		el.log.Error("Failed to finalize connections for auction", "auction_id",
			event.AuctionID, "error", err)
		return err
	}
	return nil
}
