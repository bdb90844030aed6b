package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/glassworks/storefront/internal/services"
)

const orderCreatedEvent = "order.created"

// PubSubOrderNotifier hands order confirmations to the mail worker through a Pub/Sub topic.
type PubSubOrderNotifier struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderNotifier constructs a Pub/Sub backed order notifier.
func NewPubSubOrderNotifier(topic *pubsub.Topic) (*PubSubOrderNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub order notifier: topic is required")
	}
	return &PubSubOrderNotifier{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// NotifyOrderCreated publishes the confirmation payload and waits for the server ack.
func (p *PubSubOrderNotifier) NotifyOrderCreated(ctx context.Context, notification services.OrderNotification) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order notifier: not initialised")
	}
	data, err := p.marshal(newNotificationPayload(notification))
	if err != nil {
		return fmt.Errorf("marshal order notification: %w", err)
	}

	attrs := make(map[string]string)
	attrs["event"] = orderCreatedEvent
	setAttr(attrs, "orderNumber", notification.OrderNumber)
	setAttr(attrs, "locale", notification.Locale)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order notification: %w", err)
	}
	return nil
}

// PubSubOrderEventPublisher emits order domain events for downstream consumers.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order events: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent publishes the event. Messages for one order share an ordering key so
// consumers that enable ordering see status changes in sequence.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order events: not initialised")
	}
	data, err := p.marshal(eventPayload{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		PreviousStatus: string(event.PreviousStatus),
		CurrentStatus:  string(event.CurrentStatus),
		ActorID:        event.ActorID,
		Total:          event.Total,
		OccurredAt:     event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "status", string(event.CurrentStatus))

	msg := &pubsub.Message{Data: data, Attributes: attrs}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = event.OrderID
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

type notificationPayload struct {
	OrderID       string             `json:"orderId"`
	OrderNumber   string             `json:"orderNumber"`
	Locale        string             `json:"locale"`
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
	PaymentMethod string             `json:"paymentMethod"`
	DisplayDate   string             `json:"displayDate"`
	Items         []notificationItem `json:"items"`
	Subtotal      string             `json:"subtotal"`
	ShippingCost  string             `json:"shippingCost"`
	Discount      string             `json:"discount,omitempty"`
	Total         string             `json:"total"`
}

type notificationItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

type eventPayload struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	CurrentStatus  string    `json:"currentStatus"`
	ActorID        string    `json:"actorId,omitempty"`
	Total          int64     `json:"total"`
	OccurredAt     time.Time `json:"occurredAt"`
}

func newNotificationPayload(n services.OrderNotification) notificationPayload {
	items := make([]notificationItem, 0, len(n.Items))
	for _, item := range n.Items {
		items = append(items, notificationItem{Name: item.Name, Quantity: item.Quantity, LineTotal: item.LineTotal})
	}
	return notificationPayload{
		OrderID:       n.OrderID,
		OrderNumber:   n.OrderNumber,
		Locale:        n.Locale,
		CustomerName:  n.CustomerName,
		CustomerEmail: n.CustomerEmail,
		PaymentMethod: string(n.PaymentMethod),
		DisplayDate:   n.DisplayDate,
		Items:         items,
		Subtotal:      n.Subtotal,
		ShippingCost:  n.ShippingCost,
		Discount:      n.Discount,
		Total:         n.Total,
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
