// Package filter describes eth_getLogs queries and checks logs against them.
package filter

import (
	"github.com/hedeqiang/tokenwatch/event"
)

// Query describes the parameters for fetching event logs.
type Query struct {
	Addresses []event.Address
	Topics    [][]event.Hash
	FromBlock *uint64
	ToBlock   *uint64
}

// QueryOption configures a Query.
type QueryOption func(*Query)

// NewQuery creates a Query with the given options applied.
func NewQuery(opts ...QueryOption) Query {
	var q Query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// WithAddresses adds contract addresses to filter on.
func WithAddresses(addrs ...event.Address) QueryOption {
	return func(q *Query) {
		q.Addresses = append(q.Addresses, addrs...)
	}
}

// WithTopics sets the topic filters.
// Each element in the outer slice corresponds to a topic position.
// Multiple hashes within an inner slice are OR-matched; an empty inner slice matches anything.
func WithTopics(topics ...[]event.Hash) QueryOption {
	return func(q *Query) {
		q.Topics = topics
	}
}

// Range returns a copy of q restricted to [from, to].
func (q Query) Range(from, to uint64) Query {
	q.FromBlock = &from
	q.ToBlock = &to
	return q
}
