package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/model"
)

// MatchMessage 发给结算服务的撮合结果
type MatchMessage struct {
	ChainId      int64                `json:"chainId"`
	BuyOrderId   string               `json:"buyOrderId"`
	SellOrderIds []string             `json:"sellOrderIds"`
	Match        *model.BuyOrderMatch `json:"match"`
	MatchedAt    int64                `json:"matchedAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaExecutor 把撮合结果发布到 Kafka, 由链上结算服务消费执行
type KafkaExecutor struct {
	writer  messageWriter
	chainId int64
	now     func() time.Time
}

func NewKafkaExecutor(brokers []string, topic string, chainId int64) *KafkaExecutor {
	return &KafkaExecutor{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		chainId: chainId,
		now:     time.Now,
	}
}

// Execute 以买单 id 为 key 发布, 同一买单的消息落在同一分区
func (e *KafkaExecutor) Execute(ctx context.Context, match *model.BuyOrderMatch) error {
	if match == nil || match.BuyOrder == nil {
		return errors.New("empty match")
	}

	msg := MatchMessage{
		ChainId:      e.chainId,
		BuyOrderId:   match.BuyOrder.OrderId,
		SellOrderIds: match.SellOrderIds(),
		Match:        match,
		MatchedAt:    e.now().UnixMilli(),
	}
	payload, err := json.Marshal(&msg)
	if err != nil {
		return errors.Wrap(err, "failed on marshal match message")
	}

	if err := e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.BuyOrderId),
		Value: payload,
	}); err != nil {
		return errors.Wrap(err, "failed on publish match")
	}

	xzap.WithContext(ctx).Info("match published",
		zap.String("buy_order_id", msg.BuyOrderId),
		zap.Int("sell_orders", len(msg.SellOrderIds)))
	return nil
}

func (e *KafkaExecutor) Close() error {
	return e.writer.Close()
}
