package kafka

import (
	"ChatApp/internal/api/config"
	"ChatApp/internal/pkg/mongo"
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const EventMessageCreated = "message.created"

// MessageEvent 消息创建事件，供下游消费
type MessageEvent struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"messageId"`
	ChatID     string    `json:"chatId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventPublisher 消息事件发布
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, msg *mongo.ChatMessage) error
	Close() error
}

// enqueueTimeout 生产者输入队列满时最多等待的时长，超时即丢弃事件
const enqueueTimeout = 2 * time.Second

type saramaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	wg       sync.WaitGroup

	mu      sync.Mutex
	failed  int
	lastErr error
}

// NewEventPublisher kafka.enabled 为 false 时返回空实现
func NewEventPublisher(cfg config.KafkaConfig) (EventPublisher, error) {
	if !cfg.Enabled {
		log.Info("Kafka publisher disabled")
		return NopPublisher{}, nil
	}
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	log.Info("Kafka publisher initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewSaramaPublisher(producer, cfg.Topic), nil
}

// NewSaramaPublisher 接管 producer 的 Successes 与 Errors 通道，调用方不可再读取
func NewSaramaPublisher(producer sarama.AsyncProducer, topic string) EventPublisher {
	p := &saramaPublisher{producer: producer, topic: topic}
	p.wg.Add(2)
	go p.drainSuccesses()
	go p.drainErrors()
	return p
}

// PublishMessageCreated 以会话 ID 为分区键，保证同一会话事件有序
// 只负责入队，投递结果由后台 goroutine 记录
func (s *saramaPublisher) PublishMessageCreated(ctx context.Context, msg *mongo.ChatMessage) error {
	body, err := json.Marshal(&MessageEvent{
		Type:       EventMessageCreated,
		MessageID:  msg.ID,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp,
	})
	if err != nil {
		return errors.Wrap(err, "marshal message event")
	}

	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	select {
	case s.producer.Input() <- &sarama.ProducerMessage{
		Topic:    s.topic,
		Key:      sarama.StringEncoder(msg.ChatID),
		Value:    sarama.ByteEncoder(body),
		Metadata: msg.ID,
	}:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "enqueue message %s", msg.ID)
	}
}

func (s *saramaPublisher) drainSuccesses() {
	defer s.wg.Done()
	for pm := range s.producer.Successes() {
		log.Debug("message event published", "message_id", pm.Metadata, "partition", pm.Partition, "offset", pm.Offset)
	}
}

func (s *saramaPublisher) drainErrors() {
	defer s.wg.Done()
	for pe := range s.producer.Errors() {
		log.Warn("Failed to publish message event", "message_id", pe.Msg.Metadata, "err", pe.Err)
		s.mu.Lock()
		s.failed++
		s.lastErr = pe.Err
		s.mu.Unlock()
	}
}

// Close 等待缓冲中的事件发送完毕，期间有投递失败时返回最后一个错误
func (s *saramaPublisher) Close() error {
	s.producer.AsyncClose()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed > 0 {
		return errors.Wrapf(s.lastErr, "%d message events failed", s.failed)
	}
	return nil
}

// NopPublisher 未启用 Kafka 时使用
type NopPublisher struct{}

func (NopPublisher) PublishMessageCreated(context.Context, *mongo.ChatMessage) error { return nil }

func (NopPublisher) Close() error { return nil }
