package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnswerEvent 问答终态事件，供客服审计
type AnswerEvent struct {
	RequestID string    `json:"request_id"`
	TenantID  *string   `json:"tenant_id"`
	Question  string    `json:"question"`
	State     string    `json:"state"`
	FailedAt  string    `json:"failed_at,omitempty"`
	SourceIDs []string  `json:"source_ids"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAnswerEvent 由流水线终态构造事件
func NewAnswerEvent(outcome rag.Outcome) AnswerEvent {
	ids := make([]string, 0, len(outcome.Sources))
	for _, s := range outcome.Sources {
		ids = append(ids, s.ID)
	}
	event := AnswerEvent{
		RequestID: uuid.NewString(),
		TenantID:  outcome.TenantID,
		Question:  outcome.Question,
		State:     string(outcome.State),
		FailedAt:  string(outcome.FailedAt),
		SourceIDs: ids,
		LatencyMS: outcome.Duration.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}
	return event
}

// DefaultBufferSize 待发送事件队列长度
const DefaultBufferSize = 256

// Producer Kafka生产者。Observe只入队，由后台协程发送，队列满时丢弃事件。
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger

	events  chan AnswerEvent
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewSaramaConfig 生产者配置
func NewSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second
	return config
}

// NewProducer 连接broker创建生产者
func NewProducer(brokers []string, topic string, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}
	p := NewProducerWith(producer, topic, logger)
	p.logger.Info("Kafka生产者初始化成功", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return p, nil
}

// NewProducerWith 使用已有的SyncProducer
func NewProducerWith(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Producer {
	return NewProducerWithBuffer(producer, topic, DefaultBufferSize, logger)
}

// NewProducerWithBuffer 指定队列长度
func NewProducerWithBuffer(producer sarama.SyncProducer, topic string, size int, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topic == "" {
		topic = "rag.answered"
	}
	if size <= 0 {
		size = DefaultBufferSize
	}
	p := &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
		events:   make(chan AnswerEvent, size),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Producer) run() {
	defer close(p.done)
	for event := range p.events {
		if err := p.Publish(event); err != nil {
			p.logger.Warn("发布问答事件失败", zap.String("request_id", event.RequestID), zap.Error(err))
		}
	}
}

// Publish 发送问答事件
func (p *Producer) Publish(event AnswerEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("Kafka生产者未初始化")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	key := "global"
	if event.TenantID != nil {
		key = *event.TenantID
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("request_id"), Value: []byte(event.RequestID)},
			{Key: []byte("state"), Value: []byte(event.State)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}

	p.logger.Debug("Kafka消息发送成功",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("request_id", event.RequestID))
	return nil
}

// Observe 作为流水线观察者入队事件，不阻塞问答请求
func (p *Producer) Observe(ctx context.Context, outcome rag.Outcome) {
	event := NewAnswerEvent(outcome)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- event:
	default:
		n := p.dropped.Add(1)
		p.logger.Warn("事件队列已满，丢弃问答事件",
			zap.String("request_id", event.RequestID),
			zap.Int64("dropped_total", n))
	}
}

// Dropped 因队列满丢弃的事件数
func (p *Producer) Dropped() int64 {
	return p.dropped.Load()
}

// Close 发送完队列中的事件后关闭生产者
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.done
	return p.producer.Close()
}
