package kafkapubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
	golog "github.com/textileio/go-log/v2"
	mbroker "github.com/wattmarket/auction-core/msgbroker"
)

var log = golog.Logger("kafkapubsub")

// KafkaMsgBroker is a msgbroker.MsgBroker backed by Kafka. Each topic gets
// one writer; each registered handler gets a consumer-group reader whose
// messages are committed only after the handler succeeds, so failed
// messages are redelivered.
type KafkaMsgBroker struct {
	brokers     []string
	topicPrefix string

	clientCtx       context.Context
	clientCtxCancel context.CancelFunc

	writersLock sync.Mutex
	writers     map[string]*kafka.Writer

	readersLock sync.Mutex
	readers     []*kafka.Reader

	metrics metricsCollector
}

var _ mbroker.MsgBroker = (*KafkaMsgBroker)(nil)

// New returns a new KafkaMsgBroker.
func New(brokers []string, topicPrefix string) (*KafkaMsgBroker, error) {
	if len(brokers) == 0 {
		return nil, errors.New("brokers list is empty")
	}
	if topicPrefix == "" {
		return nil, errors.New("topic-prefix is empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	k := &KafkaMsgBroker{
		brokers:     brokers,
		topicPrefix: topicPrefix,

		clientCtx:       ctx,
		clientCtxCancel: cancel,

		writers: map[string]*kafka.Writer{},
		metrics: noopMetricsCollector{},
	}
	k.initMetrics()

	return k, nil
}

// RegisterTopicHandler registers handler in a consumer group derived from
// the topic prefix.
func (k *KafkaMsgBroker) RegisterTopicHandler(
	topicName mbroker.TopicName,
	handler mbroker.TopicHandler,
	opts ...mbroker.Option) error {
	config, err := mbroker.ApplyRegisterHandlerOptions(opts...)
	if err != nil {
		return fmt.Errorf("applying options: %s", err)
	}

	topic := k.topicName(topicName)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  fmt.Sprintf("%s-%s", k.topicPrefix, topicName),
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})

	k.readersLock.Lock()
	k.readers = append(k.readers, reader)
	k.readersLock.Unlock()

	go k.receive(reader, topic, handler, config.AckDeadline)

	log.Debugf("registered handler for topic %s", topic)
	return nil
}

// PublishMsg publishes data to the desired topic.
func (k *KafkaMsgBroker) PublishMsg(ctx context.Context, topicName mbroker.TopicName, data []byte) error {
	topic := k.topicName(topicName)
	writer := k.getWriter(topic)
	err := writer.WriteMessages(ctx, kafka.Message{Value: data})
	k.metrics.onPublish(ctx, topic, err)
	if err != nil {
		return fmt.Errorf("publishing to topic %s: %s", topic, err)
	}
	return nil
}

// Close stops readers and writers. Registered handlers stop receiving
// messages.
func (k *KafkaMsgBroker) Close() error {
	k.clientCtxCancel()

	var errs []string
	k.readersLock.Lock()
	for _, reader := range k.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	k.readersLock.Unlock()

	k.writersLock.Lock()
	for _, writer := range k.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	k.writersLock.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("closing kafka broker: %s", errs)
	}
	return nil
}

func (k *KafkaMsgBroker) receive(
	reader *kafka.Reader,
	topic string,
	handler mbroker.TopicHandler,
	ackDeadline time.Duration) {
	for {
		msg, err := reader.FetchMessage(k.clientCtx)
		if err != nil {
			if k.clientCtx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Errorf("fetching message from topic %s: %s", topic, err)
			continue
		}

		ctx, cancel := context.WithTimeout(k.clientCtx, ackDeadline)
		start := time.Now()
		err = handler(ctx, msg.Value)
		k.metrics.onHandle(ctx, topic, time.Since(start), err)
		cancel()
		if err != nil {
			// Not committed; the message will be redelivered.
			log.Errorf("handling message from topic %s: %s", topic, err)
			continue
		}

		if err := reader.CommitMessages(k.clientCtx, msg); err != nil {
			if k.clientCtx.Err() != nil {
				return
			}
			log.Errorf("committing message from topic %s: %s", topic, err)
		}
	}
}

func (k *KafkaMsgBroker) getWriter(topic string) *kafka.Writer {
	k.writersLock.Lock()
	defer k.writersLock.Unlock()
	if writer, ok := k.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           time.Millisecond * 10,
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = writer
	return writer
}

func (k *KafkaMsgBroker) topicName(name mbroker.TopicName) string {
	return fmt.Sprintf("%s-%s", k.topicPrefix, name)
}
