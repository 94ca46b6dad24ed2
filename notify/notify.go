// Package notify renders transfer alerts and delivers them to subscribers.
package notify

import (
	"context"
	"errors"
	"math/big"

	"github.com/hedeqiang/tokenwatch/event"
)

// ErrDispatch wraps every delivery failure reported by a Sink.
var ErrDispatch = errors.New("notify: dispatch failed")

// Direction tells whether the watched address received or sent tokens.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Notification is one alert for one subscriber.
type Notification struct {
	SubscriberID int64     `json:"subscriber_id"`
	Direction    Direction `json:"direction"`

	// Watched is the subscriber's address; Counterparty is the other side.
	Watched      event.Address `json:"watched"`
	Counterparty event.Address `json:"counterparty"`

	Value   *big.Int `json:"value"`
	Balance *big.Int `json:"balance"`

	BlockNumber uint64     `json:"block_number"`
	TxHash      event.Hash `json:"tx_hash"`
	LogIndex    uint       `json:"log_index"`

	// Text is the rendered human-readable message.
	Text string `json:"text"`
}

// Sink delivers notifications. Implementations return an error wrapping
// ErrDispatch when a message could not be delivered.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}
