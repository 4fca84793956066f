package events

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "shopops.purchasing"

// KafkaPublisher writes events asynchronously; WriteMessages returns once the
// message is queued and delivery failures are logged from the completion hook.
type KafkaPublisher struct {
	writer *kafka.Writer
	failed atomic.Int64
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &KafkaPublisher{}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			p.failed.Add(int64(len(messages)))
			log.Printf("[events] WARN: kafka delivery of %d message(s) failed: %v", len(messages), err)
		},
	}
	log.Printf("[events] kafka publisher configured for topic %q on %v", topic, brokers)
	return p
}

// Publish keys messages by Event.Key so events for one list stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaPublisher) Failed() int64 {
	return p.failed.Load()
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
