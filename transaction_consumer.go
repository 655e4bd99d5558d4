package main

import (
	"bytes"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"bankd/bank"
)

// TransactionConsumer drains the queue and applies each transaction through
// the engine. Validation failures are final, so those messages are dropped;
// I/O failures are transient, so those are requeued.
type TransactionConsumer struct {
	bank     *bank.Bank
	rabbitMQ *RabbitMQ
}

func NewTransactionConsumer(b *bank.Bank, rabbitMQ *RabbitMQ) *TransactionConsumer {
	return &TransactionConsumer{bank: b, rabbitMQ: rabbitMQ}
}

// Start consumes until the channel closes.
func (tc *TransactionConsumer) Start() {
	msgs, err := tc.rabbitMQ.channel.Consume(
		TransactionQueue, // queue
		"",               // consumer
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,              // args
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to register queue consumer")
	}

	logrus.Info("waiting for transaction messages")
	for d := range msgs {
		var qt QueuedTransaction
		if err := json.Unmarshal(d.Body, &qt); err != nil {
			logrus.WithError(err).Warn("dropping malformed transaction message")
			d.Nack(false, false)
			continue
		}

		if err := tc.process(qt); err != nil {
			if isValidationErr(err) {
				logrus.WithError(err).WithField("type", qt.Type).
					Warn("dropping rejected transaction")
				d.Nack(false, false)
			} else {
				logrus.WithError(err).WithField("type", qt.Type).
					Error("transaction failed, requeueing")
				d.Nack(false, true)
			}
			continue
		}
		d.Ack(false)
	}
}

func (tc *TransactionConsumer) process(qt QueuedTransaction) error {
	var sink bytes.Buffer
	var err error
	switch qt.Type {
	case "deposit":
		err = tc.bank.Deposit(&sink, qt.AccountID, float32(qt.Amount))
	case "withdrawal":
		err = tc.bank.Withdraw(&sink, qt.AccountID, float32(qt.Amount))
	case "transfer":
		err = tc.bank.Transfer(&sink, qt.FromAccount, qt.ToAccount, float32(qt.Amount))
	default:
		return bank.ErrInvalidAmount
	}
	if err != nil {
		return err
	}
	logrus.WithField("result", sink.String()).Info("processed queued transaction")
	return nil
}

func isValidationErr(err error) bool {
	switch err {
	case bank.ErrInvalidAmount, bank.ErrAccountNotFound, bank.ErrAccountInactive,
		bank.ErrInsufficientFunds, bank.ErrSameAccount:
		return true
	}
	return false
}
