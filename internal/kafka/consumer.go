package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// AnswerHandler 处理一条问答事件
type AnswerHandler func(ctx context.Context, event AnswerEvent) error

// Consumer 问答事件消费者
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string
	logger *zap.Logger
}

// NewConsumer 创建消费者组
func NewConsumer(brokers []string, groupID string, topics []string, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka消费者组失败: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{group: group, topics: topics, logger: logger}, nil
}

// Run 持续消费直到ctx结束
func (c *Consumer) Run(ctx context.Context, handle AnswerHandler) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("Kafka消费者错误", zap.Error(err))
		}
	}()

	handler := &answerGroupHandler{handle: handle, logger: c.logger}
	for {
		err := c.group.Consume(ctx, c.topics, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}
		if err != nil {
			c.logger.Error("消费消息失败", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// Close 关闭消费者
func (c *Consumer) Close() error {
	if c == nil || c.group == nil {
		return nil
	}
	return c.group.Close()
}

// ParseAnswerEvent 解析问答事件
func ParseAnswerEvent(data []byte) (*AnswerEvent, error) {
	var event AnswerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("解析问答事件失败: %w", err)
	}
	if event.RequestID == "" {
		return nil, fmt.Errorf("问答事件缺少request_id")
	}
	return &event, nil
}

type answerGroupHandler struct {
	handle AnswerHandler
	logger *zap.Logger
}

func (h *answerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *answerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *answerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.process(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// process 无法解析的消息直接跳过，处理失败只记录日志
func (h *answerGroupHandler) process(ctx context.Context, message *sarama.ConsumerMessage) {
	event, err := ParseAnswerEvent(message.Value)
	if err != nil {
		h.logger.Warn("跳过无效消息",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
			zap.Error(err))
		return
	}
	if err := h.handle(ctx, *event); err != nil {
		h.logger.Error("处理消息失败",
			zap.String("request_id", event.RequestID),
			zap.Error(err))
	}
}
