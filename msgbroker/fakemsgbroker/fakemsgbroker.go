package fakemsgbroker

import (
	"context"
	"fmt"
	"sync"

	mbroker "github.com/wattmarket/auction-core/msgbroker"
)

// FakeMsgBroker is an in-memory msgbroker.MsgBroker for tests. Published
// messages are retained per topic, and registered handlers can be driven
// synchronously with Deliver.
type FakeMsgBroker struct {
	lock          sync.Mutex
	topicMessages map[string][][]byte
	topicHandlers map[string]mbroker.TopicHandler
}

var _ mbroker.MsgBroker = (*FakeMsgBroker)(nil)

// New returns a new FakeMsgBroker.
func New() *FakeMsgBroker {
	return &FakeMsgBroker{
		topicMessages: map[string][][]byte{},
		topicHandlers: map[string]mbroker.TopicHandler{},
	}
}

// RegisterTopicHandler registers handler for topicName.
func (b *FakeMsgBroker) RegisterTopicHandler(
	topicName mbroker.TopicName,
	handler mbroker.TopicHandler,
	opts ...mbroker.Option) error {
	if _, err := mbroker.ApplyRegisterHandlerOptions(opts...); err != nil {
		return fmt.Errorf("applying options: %s", err)
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.topicHandlers[string(topicName)]; ok {
		return fmt.Errorf("handler for topic %s already registered", topicName)
	}
	b.topicHandlers[string(topicName)] = handler
	return nil
}

// PublishMsg retains data under topicName.
func (b *FakeMsgBroker) PublishMsg(ctx context.Context, topicName mbroker.TopicName, data []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.topicMessages[string(topicName)] = append(b.topicMessages[string(topicName)], data)

	return nil
}

// Helpers for tests

// Deliver runs the registered handler for name with the idx-th published message.
func (b *FakeMsgBroker) Deliver(ctx context.Context, name string, idx int) error {
	data, err := b.GetMsg(name, idx)
	if err != nil {
		return err
	}
	b.lock.Lock()
	handler, ok := b.topicHandlers[name]
	b.lock.Unlock()
	if !ok {
		return fmt.Errorf("no handler registered for topic %s", name)
	}
	return handler(ctx, data)
}

// TotalPublished returns the number of messages published across topics.
func (b *FakeMsgBroker) TotalPublished() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	var count int
	for _, msgs := range b.topicMessages {
		count += len(msgs)
	}

	return count
}

// TotalPublishedTopic returns the number of messages published to a topic.
func (b *FakeMsgBroker) TotalPublishedTopic(name string) int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.topicMessages[name])
}

// GetMsg returns the idx-th message published to a topic.
func (b *FakeMsgBroker) GetMsg(name string, idx int) ([]byte, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	topic := b.topicMessages[name]
	if idx >= len(topic) {
		return nil, fmt.Errorf("topic queue has length %d smaller than idx access %d", len(topic), idx)
	}

	return topic[idx], nil
}
