package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("kafka producer closed")

// Producer buffers messages in memory and writes them from one goroutine.
// The topic is chosen per message.
type Producer struct {
	w       *kafka.Writer
	log     *zap.Logger
	inbox   chan kafka.Message
	stop    chan struct{}
	closeCh chan struct{}
	once    sync.Once

	mu     sync.RWMutex // held shared by Publish while it hands off a message
	closed bool
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	p := &Producer{
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		stop:    make(chan struct{}),
		closeCh: make(chan struct{}),
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true, // errors surface through Completion
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.log.Error("kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return p
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.shutdown()
				p.flush()
				return
			case <-p.stop:
				p.shutdown()
				p.flush()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka enqueue failed", zap.String("topic", m.Topic), zap.Error(err))
	}
}

// flush writes whatever is still buffered and closes the writer. It runs
// after shutdown, so no Publish can add to the buffer anymore.
func (p *Producer) flush() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.log.Error("kafka writer close", zap.Error(err))
			}
			close(p.closeCh)
			return
		}
	}
}

// Publish hands a message to the writer goroutine. It blocks only while
// the buffer is full.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- kafka.Message{Topic: topic, Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return nil
	case <-p.stop:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishJSON marshals v and tags the message with its event type.
func (p *Producer) PublishJSON(ctx context.Context, topic string, key []byte, eventType string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, key, b, kafka.Header{Key: "event_type", Value: []byte(eventType)})
}

// Close stops accepting messages; the writer goroutine flushes and exits.
func (p *Producer) Close() { p.shutdown() }

// shutdown wakes blocked publishers, then waits for in-flight ones to
// return before marking the producer closed.
func (p *Producer) shutdown() {
	p.once.Do(func() {
		close(p.stop)
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
	})
}

// WaitClosed blocks until the buffered messages were handed to the writer.
func (p *Producer) WaitClosed() { <-p.closeCh }
