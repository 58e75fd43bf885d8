package msgbroker

import (
	"context"
	"errors"
	"fmt"
)

// TopicHandler is function that processes a received message.
// If no error is returned, the message will be automatically acked.
// If an error is returned, the message will be automatically nacked.
type TopicHandler func(context.Context, []byte) error

// MsgBroker is a message-broker for async message communication.
type MsgBroker interface {
	// RegisterTopicHandler registers a handler to a topic, with a defined
	// subscription defined by the underlying implementation. Is highly recommended
	// to register handlers in a type-safe way using RegisterHandlers().
	RegisterTopicHandler(topic TopicName, handler TopicHandler, opts ...Option) error

	// PublishMsg publishes a message to the desired topic.
	PublishMsg(ctx context.Context, topicName TopicName, data []byte) error
}

// TopicName is a topic name.
type TopicName string

const (
	// AuctionCreatedTopic is the topic name for auction-created messages.
	AuctionCreatedTopic TopicName = "auction-created"
	// AuctionBidReceivedTopic is the topic name for auction-bid-received messages.
	AuctionBidReceivedTopic = "auction-bid-received"
	// AuctionMatchedTopic is the topic name for auction-matched messages.
	AuctionMatchedTopic = "auction-matched"
	// AuctionExecutedTopic is the topic name for auction-executed messages.
	AuctionExecutedTopic = "auction-executed"
	// AuctionDestroyedTopic is the topic name for auction-destroyed messages.
	AuctionDestroyedTopic = "auction-destroyed"
)

// OperationID is a unique identifier for messages.
type OperationID string

// RegisterHandlers automatically calls mb.RegisterTopicHandler in the methods that
// s might satisfy on known XXXListener interfaces. This allows to automatically wire
// s to receive messages from topics of implemented handlers.
func RegisterHandlers(mb MsgBroker, s interface{}, opts ...Option) error {
	var countRegistered int

	if l, ok := s.(AuctionCreatedListener); ok {
		countRegistered++
		if err := mb.RegisterTopicHandler(AuctionCreatedTopic, onAuctionCreatedTopic(l), opts...); err != nil {
			return fmt.Errorf("registering handler for auction-created topic: %s", err)
		}
	}

	if l, ok := s.(AuctionBidReceivedListener); ok {
		countRegistered++
		if err := mb.RegisterTopicHandler(AuctionBidReceivedTopic, onAuctionBidReceivedTopic(l), opts...); err != nil {
			return fmt.Errorf("registering handler for auction-bid-received topic: %s", err)
		}
	}

	if l, ok := s.(AuctionMatchedListener); ok {
		countRegistered++
		if err := mb.RegisterTopicHandler(AuctionMatchedTopic, onAuctionMatchedTopic(l), opts...); err != nil {
			return fmt.Errorf("registering handler for auction-matched topic: %s", err)
		}
	}

	if l, ok := s.(AuctionExecutedListener); ok {
		countRegistered++
		if err := mb.RegisterTopicHandler(AuctionExecutedTopic, onAuctionExecutedTopic(l), opts...); err != nil {
			return fmt.Errorf("registering handler for auction-executed topic: %s", err)
		}
	}

	if l, ok := s.(AuctionDestroyedListener); ok {
		countRegistered++
		if err := mb.RegisterTopicHandler(AuctionDestroyedTopic, onAuctionDestroyedTopic(l), opts...); err != nil {
			return fmt.Errorf("registering handler for auction-destroyed topic: %s", err)
		}
	}

	if countRegistered == 0 {
		return errors.New("no handlers were registered")
	}

	return nil
}
