package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
)

var ErrQueueFull = errors.New("event queue full")

// MessageWriter is the part of *kafka.Writer the relay needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the part of *kafka.Reader the relay needs
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaRelay publishes events to a topic through a worker pool and feeds
// events read back from the topic into the local hub, so every instance's
// clients see every event.
type KafkaRelay struct {
	topic   string
	writer  MessageWriter
	reader  MessageReader
	hub     *realtime.Hub
	outbox  Outbox
	queue   chan Event
	workers int

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewKafkaWriter returns a writer for broker tuned the same way for every topic
func NewKafkaWriter(broker string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
}

// NewKafkaReader returns a group reader. Each instance needs its own groupID
// to receive the full stream.
func NewKafkaReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

// NewKafkaRelay starts the writer workers. outbox may be nil, in which case
// events that fail to reach Kafka are delivered to the local hub only.
func NewKafkaRelay(topic string, writer MessageWriter, reader MessageReader, hub *realtime.Hub, outbox Outbox, workers int) *KafkaRelay {
	if workers <= 0 {
		workers = 4
	}
	r := &KafkaRelay{
		topic:    topic,
		writer:   writer,
		reader:   reader,
		hub:      hub,
		outbox:   outbox,
		queue:    make(chan Event, 1000),
		workers:  workers,
		shutdown: make(chan struct{}),
	}
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	logrus.Infof("Kafka relay started %d writer workers for topic %s", r.workers, topic)
	return r
}

// Publish queues ev without blocking
func (r *KafkaRelay) Publish(_ context.Context, ev Event) error {
	select {
	case r.queue <- ev:
		return nil
	default:
		return fmt.Errorf("%w, %s dropped", ErrQueueFull, ev.Type)
	}
}

func (r *KafkaRelay) worker(id int) {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.queue:
			r.deliver(ev, id)
		case <-r.shutdown:
			// drain what is already queued
			for {
				select {
				case ev := <-r.queue:
					r.deliver(ev, id)
				default:
					return
				}
			}
		}
	}
}

func (r *KafkaRelay) deliver(ev Event, worker int) {
	err := r.Write(context.Background(), ev)
	if err == nil {
		return
	}
	log := logrus.WithFields(logrus.Fields{
		"worker":     worker,
		"event_id":   ev.ID,
		"event_type": ev.Type,
	})
	log.WithError(err).Warn("Failed to relay event to Kafka")

	if r.outbox == nil {
		if err := r.hub.Broadcast(ev.Frame()); err != nil {
			log.WithError(err).Warn("Local fallback broadcast failed")
		}
		return
	}
	if err := r.outbox.Save(context.Background(), ev, err); err != nil {
		log.WithError(err).Error("Failed to store event for retry")
	}
}

// Write sends ev to Kafka synchronously
func (r *KafkaRelay) Write(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: r.topic,
		Key:   []byte(ev.CompanyID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "company_id", Value: []byte(ev.CompanyID)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}
	return nil
}

// Consume reads events from the topic into the hub until ctx is cancelled
func (r *KafkaRelay) Consume(ctx context.Context) {
	logrus.Infof("Consuming realtime events from %s", r.topic)
	for {
		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		msg, err := r.reader.ReadMessage(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logrus.WithError(err).Warn("Error reading event from Kafka")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var ev Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logrus.WithError(err).Warn("Skipping malformed event")
			continue
		}
		if err := r.hub.Broadcast(ev.Frame()); err != nil {
			logrus.WithError(err).WithField("event_id", ev.ID).Warn("Failed to broadcast relayed event")
		}
	}
}

// Close stops the workers after draining the queue and closes the Kafka clients
func (r *KafkaRelay) Close() error {
	close(r.shutdown)
	r.wg.Wait()

	var errs []error
	if err := r.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close Kafka writer: %w", err))
	}
	if r.reader != nil {
		if err := r.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka reader: %w", err))
		}
	}
	return errors.Join(errs...)
}
