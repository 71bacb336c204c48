package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"bookstore-orders/internal/config"
	"bookstore-orders/internal/models"
)

// Producer publishes order lifecycle events after the core transaction has
// committed. Every publish is best effort; callers log failures and move on.
type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

// OrderEvent is the wire format shared by all order topics.
type OrderEvent struct {
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount float64            `json:"total_amount"`
	Reason      string             `json:"reason,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

func (p *Producer) publish(topic string, order models.Order, reason string) error {
	event := OrderEvent{
		OrderID:     order.OrderID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Reason:      reason,
		OccurredAt:  time.Now(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(order.OrderID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publish(p.Topics.OrderCreated, order, "")
}

func (p *Producer) PublishCancelRequested(order models.Order) error {
	return p.publish(p.Topics.CancelRequested, order, "")
}

func (p *Producer) PublishReturnRequested(order models.Order, reason string) error {
	return p.publish(p.Topics.ReturnRequested, order, reason)
}

func (p *Producer) PublishDeliveryCompleted(order models.Order) error {
	return p.publish(p.Topics.DeliveryCompleted, order, "")
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
