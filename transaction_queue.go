package main

import (
	"encoding/json"
	"os"

	"github.com/streadway/amqp"
)

const TransactionQueue = "bankd_transactions"

// QueuedTransaction is the wire form of an asynchronously submitted
// transaction. Deposits and withdrawals use AccountID; transfers use
// FromAccount/ToAccount.
type QueuedTransaction struct {
	Type        string  `json:"type"`
	AccountID   int32   `json:"account_id,omitempty"`
	FromAccount int32   `json:"from_account,omitempty"`
	ToAccount   int32   `json:"to_account,omitempty"`
	Amount      float64 `json:"amount"`
}

// RabbitMQ connection wrapper holding one channel with the durable
// transaction queue declared.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ dials RABBITMQ_URI and declares the transaction queue.
func NewRabbitMQ() (*RabbitMQ, error) {
	conn, err := amqp.Dial(os.Getenv("RABBITMQ_URI"))
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = ch.QueueDeclare(
		TransactionQueue, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQ{conn: conn, channel: ch}, nil
}

// Close releases the channel and connection.
func (r *RabbitMQ) Close() {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

// PublishTransaction enqueues a transaction as a persistent JSON message.
func (r *RabbitMQ) PublishTransaction(qt QueuedTransaction) error {
	body, err := json.Marshal(qt)
	if err != nil {
		return err
	}

	return r.channel.Publish(
		"",               // exchange
		TransactionQueue, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
}
