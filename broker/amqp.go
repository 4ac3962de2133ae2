package broker

import (
	"context"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
)

var _ Publisher = &AMQPBroker{}
var _ Consumer = &AMQPBroker{}

const (
	billingExchange   string = "billing_events"
	notificationQueue string = "billing_notifications"
)

// AMQPBroker describes a message broker via RabbitMQ
type AMQPBroker struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	// RoutingKeys bound to the notification queue when consuming
	routingKeys []string
}

// NewAMQPBroker returns a Message Broker over RabbitMQ. routingKeys are the event
// types a consumer is interested in; publishers may pass none.
func NewAMQPBroker(amqpURI string, routingKeys ...string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		amqpConn.Close()
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		connection:  amqpConn,
		channel:     amqpChan,
		routingKeys: routingKeys,
	}
	if err := broker.setupBillingExchange(); err != nil {
		broker.Close()
		return nil, extErrors.Wrap(err, "Cannot declare exchange for billing notifications")
	}

	return broker, nil
}

func (a *AMQPBroker) setupBillingExchange() error {
	return a.channel.ExchangeDeclare(
		billingExchange, // name
		"direct",        // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

func (a *AMQPBroker) publishViaRoutingKey(exchange, routingKey string, body []byte) error {
	return a.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  contentType,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// PublishNotification sends n to the billing exchange, routed by its type
func (a *AMQPBroker) PublishNotification(n *Notification) error {
	protoBytes, err := n.Marshal()
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode message into bytes")
	}
	if err := a.publishViaRoutingKey(billingExchange, n.Type, protoBytes); err != nil {
		return extErrors.Wrap(err, "Cannot publish billing notification")
	}
	return nil
}

func (a *AMQPBroker) setupQueue(qName string) error {
	_, err := a.channel.QueueDeclare(
		qName,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

func (a *AMQPBroker) bindAndGetMsgChan(qName, exchange string) (<-chan amqp.Delivery, error) {
	for _, key := range a.routingKeys {
		if err := a.channel.QueueBind(
			qName,
			key,
			exchange,
			false,
			nil,
		); err != nil {
			return nil, err
		}
	}
	msgChan, err := a.channel.Consume(
		qName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	return msgChan, err
}

// ReceiveNotifications consumes the notification queue until ctx is done.
// Deliveries that cannot be decoded are rejected without requeue.
func (a *AMQPBroker) ReceiveNotifications(ctx context.Context) (<-chan *Notification, error) {
	if len(a.routingKeys) == 0 {
		return nil, extErrors.New("Cannot consume without routing keys")
	}
	if err := a.setupQueue(notificationQueue); err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup queue")
	}
	msgChan, err := a.bindAndGetMsgChan(notificationQueue, billingExchange)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup consumer")
	}
	rChan := make(chan *Notification)
	go func() {
		defer close(rChan)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgChan:
				if !ok {
					return
				}
				var n Notification
				if err := n.Unmarshal(d.Body); err != nil {
					d.Nack(false, false)
					continue
				}
				select {
				case rChan <- &n:
					d.Ack(false)
				case <-ctx.Done():
					d.Nack(false, true)
					return
				}
			}
		}
	}()
	return rChan, nil
}
