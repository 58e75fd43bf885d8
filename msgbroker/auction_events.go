package msgbroker

import (
	"context"
	"errors"
	"fmt"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/wattmarket/auction-core/auction"
)

// AuctionSummary is the wire form of an auction carried in event payloads.
type AuctionSummary struct {
	ID          string  `cbor:"id"`
	SellerID    string  `cbor:"seller_id"`
	Quantity    big.Int `cbor:"quantity"`
	StartingBid big.Int `cbor:"starting_bid"`
	TierLevel   uint32  `cbor:"tier_level"`
	Status      string  `cbor:"status"`
	StartHeight uint64  `cbor:"start_height"`
	EndHeight   uint64  `cbor:"end_height"`
}

// BidSummary is the wire form of a bid carried in event payloads.
type BidSummary struct {
	ID      string  `cbor:"id"`
	BuyerID string  `cbor:"buyer_id"`
	Amount  big.Int `cbor:"amount"`
	Height  uint64  `cbor:"height"`
}

// AuctionCreated is the auction-created message payload.
type AuctionCreated struct {
	OperationID string         `cbor:"operation_id"`
	Auction     AuctionSummary `cbor:"auction"`
}

// AuctionBidReceived is the auction-bid-received message payload.
type AuctionBidReceived struct {
	OperationID string         `cbor:"operation_id"`
	Auction     AuctionSummary `cbor:"auction"`
	Bid         BidSummary     `cbor:"bid"`
}

// AuctionMatched is the auction-matched message payload.
type AuctionMatched struct {
	OperationID string         `cbor:"operation_id"`
	Auction     AuctionSummary `cbor:"auction"`
	WinningBid  BidSummary     `cbor:"winning_bid"`
	MatchedAt   uint64         `cbor:"matched_at"`
}

// AuctionExecuted is the auction-executed message payload.
type AuctionExecuted struct {
	OperationID string         `cbor:"operation_id"`
	Auction     AuctionSummary `cbor:"auction"`
	WinningBid  BidSummary     `cbor:"winning_bid"`
	ExecutedAt  uint64         `cbor:"executed_at"`
}

// AuctionDestroyed is the auction-destroyed message payload.
type AuctionDestroyed struct {
	OperationID string         `cbor:"operation_id"`
	Auction     AuctionSummary `cbor:"auction"`
	DestroyedAt uint64         `cbor:"destroyed_at"`
	Matched     bool           `cbor:"matched"`
}

// AuctionCreatedListener is a handler for auction-created topic.
type AuctionCreatedListener interface {
	OnAuctionCreated(context.Context, OperationID, AuctionSummary) error
}

// AuctionBidReceivedListener is a handler for auction-bid-received topic.
type AuctionBidReceivedListener interface {
	OnAuctionBidReceived(context.Context, OperationID, AuctionSummary, BidSummary) error
}

// AuctionMatchedListener is a handler for auction-matched topic.
type AuctionMatchedListener interface {
	OnAuctionMatched(ctx context.Context, opID OperationID, a AuctionSummary, winning BidSummary, matchedAt uint64) error
}

// AuctionExecutedListener is a handler for auction-executed topic.
type AuctionExecutedListener interface {
	OnAuctionExecuted(ctx context.Context, opID OperationID, a AuctionSummary, winning BidSummary, executedAt uint64) error
}

// AuctionDestroyedListener is a handler for auction-destroyed topic.
type AuctionDestroyedListener interface {
	OnAuctionDestroyed(ctx context.Context, opID OperationID, a AuctionSummary, destroyedAt uint64, matched bool) error
}

// PublishMsgAuctionCreated publishes an auction-created message.
func PublishMsgAuctionCreated(ctx context.Context, mb MsgBroker, a auction.Auction) error {
	msg := AuctionCreated{
		OperationID: uuid.NewString(),
		Auction:     AuctionToSummary(a),
	}
	return marshalAndPublish(ctx, mb, AuctionCreatedTopic, msg)
}

// PublishMsgAuctionBidReceived publishes an auction-bid-received message.
func PublishMsgAuctionBidReceived(ctx context.Context, mb MsgBroker, a auction.Auction, b auction.Bid) error {
	msg := AuctionBidReceived{
		OperationID: uuid.NewString(),
		Auction:     AuctionToSummary(a),
		Bid:         BidToSummary(b),
	}
	return marshalAndPublish(ctx, mb, AuctionBidReceivedTopic, msg)
}

// PublishMsgAuctionMatched publishes an auction-matched message.
func PublishMsgAuctionMatched(ctx context.Context, mb MsgBroker, a auction.Auction) error {
	if !a.Matched() {
		return fmt.Errorf("auction %s has no bids", a.ID)
	}
	msg := AuctionMatched{
		OperationID: uuid.NewString(),
		Auction:     AuctionToSummary(a),
		WinningBid:  BidToSummary(a.HighestBid),
		MatchedAt:   a.EndHeight,
	}
	return marshalAndPublish(ctx, mb, AuctionMatchedTopic, msg)
}

// PublishMsgAuctionExecuted publishes an auction-executed message.
func PublishMsgAuctionExecuted(ctx context.Context, mb MsgBroker, a auction.Auction, executedAt uint64) error {
	if !a.Matched() {
		return fmt.Errorf("auction %s has no bids", a.ID)
	}
	msg := AuctionExecuted{
		OperationID: uuid.NewString(),
		Auction:     AuctionToSummary(a),
		WinningBid:  BidToSummary(a.HighestBid),
		ExecutedAt:  executedAt,
	}
	return marshalAndPublish(ctx, mb, AuctionExecutedTopic, msg)
}

// PublishMsgAuctionDestroyed publishes an auction-destroyed message.
func PublishMsgAuctionDestroyed(ctx context.Context, mb MsgBroker, a auction.Auction, destroyedAt uint64) error {
	msg := AuctionDestroyed{
		OperationID: uuid.NewString(),
		Auction:     AuctionToSummary(a),
		DestroyedAt: destroyedAt,
		Matched:     a.Matched(),
	}
	return marshalAndPublish(ctx, mb, AuctionDestroyedTopic, msg)
}

func marshalAndPublish(ctx context.Context, mb MsgBroker, topic TopicName, msg interface{}) error {
	data, err := cbor.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling %s message: %s", topic, err)
	}
	if err := mb.PublishMsg(ctx, topic, data); err != nil {
		return fmt.Errorf("publishing %s message: %s", topic, err)
	}
	return nil
}

func onAuctionCreatedTopic(l AuctionCreatedListener) TopicHandler {
	return func(ctx context.Context, data []byte) error {
		r := AuctionCreated{}
		if err := cbor.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshal auction created: %s", err)
		}
		if err := validateSummary(r.OperationID, r.Auction); err != nil {
			return err
		}
		if err := l.OnAuctionCreated(ctx, OperationID(r.OperationID), r.Auction); err != nil {
			return fmt.Errorf("calling auction-created handler: %s", err)
		}
		return nil
	}
}

func onAuctionBidReceivedTopic(l AuctionBidReceivedListener) TopicHandler {
	return func(ctx context.Context, data []byte) error {
		r := AuctionBidReceived{}
		if err := cbor.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshal auction bid received: %s", err)
		}
		if err := validateSummary(r.OperationID, r.Auction); err != nil {
			return err
		}
		if r.Bid.BuyerID == "" {
			return errors.New("buyer id is empty")
		}
		if err := l.OnAuctionBidReceived(ctx, OperationID(r.OperationID), r.Auction, r.Bid); err != nil {
			return fmt.Errorf("calling auction-bid-received handler: %s", err)
		}
		return nil
	}
}

func onAuctionMatchedTopic(l AuctionMatchedListener) TopicHandler {
	return func(ctx context.Context, data []byte) error {
		r := AuctionMatched{}
		if err := cbor.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshal auction matched: %s", err)
		}
		if err := validateSummary(r.OperationID, r.Auction); err != nil {
			return err
		}
		if r.WinningBid.BuyerID == "" {
			return errors.New("winning buyer id is empty")
		}
		if err := l.OnAuctionMatched(ctx, OperationID(r.OperationID), r.Auction, r.WinningBid, r.MatchedAt); err != nil {
			return fmt.Errorf("calling auction-matched handler: %s", err)
		}
		return nil
	}
}

func onAuctionExecutedTopic(l AuctionExecutedListener) TopicHandler {
	return func(ctx context.Context, data []byte) error {
		r := AuctionExecuted{}
		if err := cbor.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshal auction executed: %s", err)
		}
		if err := validateSummary(r.OperationID, r.Auction); err != nil {
			return err
		}
		if r.WinningBid.BuyerID == "" {
			return errors.New("winning buyer id is empty")
		}
		if err := l.OnAuctionExecuted(ctx, OperationID(r.OperationID), r.Auction, r.WinningBid, r.ExecutedAt); err != nil {
			return fmt.Errorf("calling auction-executed handler: %s", err)
		}
		return nil
	}
}

func onAuctionDestroyedTopic(l AuctionDestroyedListener) TopicHandler {
	return func(ctx context.Context, data []byte) error {
		r := AuctionDestroyed{}
		if err := cbor.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshal auction destroyed: %s", err)
		}
		if err := validateSummary(r.OperationID, r.Auction); err != nil {
			return err
		}
		if err := l.OnAuctionDestroyed(ctx, OperationID(r.OperationID), r.Auction, r.DestroyedAt, r.Matched); err != nil {
			return fmt.Errorf("calling auction-destroyed handler: %s", err)
		}
		return nil
	}
}

func validateSummary(opID string, a AuctionSummary) error {
	if opID == "" {
		return errors.New("operation-id is empty")
	}
	if a.ID == "" {
		return errors.New("auction id is empty")
	}
	if a.SellerID == "" {
		return errors.New("seller id is empty")
	}
	return nil
}

// AuctionToSummary converts an auction.Auction to its wire form.
func AuctionToSummary(a auction.Auction) AuctionSummary {
	return AuctionSummary{
		ID:          string(a.ID),
		SellerID:    string(a.SellerID),
		Quantity:    a.Quantity,
		StartingBid: a.StartingBid,
		TierLevel:   a.Tier.Level,
		Status:      a.Status.String(),
		StartHeight: a.StartHeight,
		EndHeight:   a.EndHeight,
	}
}

// BidToSummary converts an auction.Bid to its wire form.
func BidToSummary(b auction.Bid) BidSummary {
	return BidSummary{
		ID:      string(b.ID),
		BuyerID: string(b.BuyerID),
		Amount:  b.Amount,
		Height:  b.Height,
	}
}
