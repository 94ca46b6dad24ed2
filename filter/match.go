package filter

import (
	"slices"

	"github.com/hedeqiang/tokenwatch/event"
)

// Match reports whether log satisfies the query the same way a node would
// evaluate it for eth_getLogs. Some providers return extra logs, so results
// are checked again locally.
func (q Query) Match(log event.Log) bool {
	if len(q.Addresses) > 0 && !slices.Contains(q.Addresses, log.Address) {
		return false
	}
	if q.FromBlock != nil && log.BlockNumber < *q.FromBlock {
		return false
	}
	if q.ToBlock != nil && log.BlockNumber > *q.ToBlock {
		return false
	}
	for i, set := range q.Topics {
		if len(set) == 0 {
			continue
		}
		if i >= len(log.Topics) || !slices.Contains(set, log.Topics[i]) {
			return false
		}
	}
	return true
}
