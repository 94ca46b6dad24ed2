// Package ethereum provides the Ethereum JSON-RPC implementation of chain.Chain.
package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hedeqiang/tokenwatch/chain"
	"github.com/hedeqiang/tokenwatch/decoder"
	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/filter"
	"github.com/hedeqiang/tokenwatch/metrics"
	"github.com/hedeqiang/tokenwatch/transport"
)

var _ chain.Chain = (*Client)(nil)

// Client talks to an Ethereum node over JSON-RPC.
type Client struct {
	transport transport.Transport
}

// New creates an Ethereum client with the given RPC endpoint.
func New(rpcURL string) *Client {
	return NewWithTransport(transport.New(rpcURL))
}

// NewWithTransport creates an Ethereum client with a custom transport.
func NewWithTransport(t transport.Transport) *Client {
	return &Client{transport: t}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// LatestBlock returns the latest block number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var hex string
	if err := c.call(ctx, &hex, "eth_blockNumber"); err != nil {
		return 0, err
	}
	n, err := parseHexUint64(hex)
	if err != nil {
		return 0, rpcError("eth_blockNumber", fmt.Errorf("parse block number: %w", err))
	}
	return n, nil
}

// FetchLogs retrieves logs matching the query.
func (c *Client) FetchLogs(ctx context.Context, query filter.Query) ([]event.Log, error) {
	var rawLogs []rpcLog
	if err := c.call(ctx, &rawLogs, "eth_getLogs", buildFilterParams(query)); err != nil {
		return nil, err
	}

	logs := make([]event.Log, len(rawLogs))
	for i, rl := range rawLogs {
		l, err := rl.toEventLog()
		if err != nil {
			return nil, rpcError("eth_getLogs", fmt.Errorf("convert log %d: %w", i, err))
		}
		logs[i] = l
	}
	return logs, nil
}

// BalanceOf calls balanceOf(account) on the token contract at the latest block.
// A revert is reported with chain.ErrReverted and a well-formed reply that
// does not decode as uint256 with decoder.ErrBadReturn, neither with chain.ErrRPC.
func (c *Client) BalanceOf(ctx context.Context, token, account event.Address) (*big.Int, error) {
	msg := map[string]interface{}{
		"to":   token.Hex(),
		"data": hexutil.Encode(decoder.PackBalanceOf(account)),
	}

	var ret hexutil.Bytes
	if err := c.call(ctx, &ret, "eth_call", msg, "latest"); err != nil {
		return nil, err
	}

	balance, err := decoder.UnpackUint256(ret)
	if err != nil {
		return nil, fmt.Errorf("ethereum: balanceOf %s: %w", account.Hex(), err)
	}
	return balance, nil
}

func (c *Client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	result, err := c.transport.Call(ctx, method, params...)
	if err != nil {
		if isRevert(err) {
			return fmt.Errorf("ethereum: %s: %w: %w", method, chain.ErrReverted, err)
		}
		return rpcError(method, err)
	}
	if err := json.Unmarshal(result, out); err != nil {
		return rpcError(method, fmt.Errorf("parse result: %w", err))
	}
	return nil
}

// isRevert reports whether err is the node's answer to a reverted call.
// Geth uses code 3 when revert data is attached and -32000 without it.
func isRevert(err error) bool {
	var rpcErr *transport.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == 3 || strings.Contains(strings.ToLower(rpcErr.Message), "execution reverted")
}

func rpcError(method string, err error) error {
	metrics.RPCErrors.WithLabelValues(method).Inc()
	return fmt.Errorf("ethereum: %s: %w: %w", method, chain.ErrRPC, err)
}

// buildFilterParams converts a Query into the JSON-RPC filter object.
func buildFilterParams(query filter.Query) map[string]interface{} {
	params := make(map[string]interface{})

	if query.FromBlock != nil {
		params["fromBlock"] = hexutil.EncodeUint64(*query.FromBlock)
	}
	if query.ToBlock != nil {
		params["toBlock"] = hexutil.EncodeUint64(*query.ToBlock)
	}

	if len(query.Addresses) > 0 {
		addrs := make([]string, len(query.Addresses))
		for i, a := range query.Addresses {
			addrs[i] = a.Hex()
		}
		if len(addrs) == 1 {
			params["address"] = addrs[0]
		} else {
			params["address"] = addrs
		}
	}

	if len(query.Topics) > 0 {
		topics := make([]interface{}, len(query.Topics))
		for i, ts := range query.Topics {
			switch len(ts) {
			case 0:
				topics[i] = nil
			case 1:
				topics[i] = ts[0].Hex()
			default:
				hashes := make([]string, len(ts))
				for j, h := range ts {
					hashes[j] = h.Hex()
				}
				topics[i] = hashes
			}
		}
		params["topics"] = topics
	}

	return params
}

// parseHexUint64 parses a "0x"-prefixed hex quantity. Unlike hexutil it
// tolerates leading zeros, which some nodes emit.
func parseHexUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return strconv.ParseUint(s, 16, 64)
}

// rpcLog is the JSON-RPC representation of an Ethereum log.
type rpcLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	BlockHash   string   `json:"blockHash"`
	TxHash      string   `json:"transactionHash"`
	TxIndex     string   `json:"transactionIndex"`
	LogIndex    string   `json:"logIndex"`
	Removed     bool     `json:"removed"`
}

func (rl *rpcLog) toEventLog() (event.Log, error) {
	var log event.Log
	log.Removed = rl.Removed

	if !common.IsHexAddress(rl.Address) {
		return log, fmt.Errorf("parse address: %q", rl.Address)
	}
	log.Address = common.HexToAddress(rl.Address)

	log.Topics = make([]event.Hash, len(rl.Topics))
	for i, t := range rl.Topics {
		b, err := hexutil.Decode(t)
		if err != nil {
			return log, fmt.Errorf("parse topic %d: %w", i, err)
		}
		log.Topics[i] = common.BytesToHash(b)
	}

	if rl.Data != "" && rl.Data != "0x" {
		data, err := hexutil.Decode(rl.Data)
		if err != nil {
			return log, fmt.Errorf("parse data: %w", err)
		}
		log.Data = data
	}

	if rl.BlockNumber != "" {
		n, err := parseHexUint64(rl.BlockNumber)
		if err != nil {
			return log, fmt.Errorf("parse blockNumber: %w", err)
		}
		log.BlockNumber = n
	}

	if rl.BlockHash != "" {
		b, err := hexutil.Decode(rl.BlockHash)
		if err != nil {
			return log, fmt.Errorf("parse blockHash: %w", err)
		}
		log.BlockHash = common.BytesToHash(b)
	}

	if rl.TxHash != "" {
		b, err := hexutil.Decode(rl.TxHash)
		if err != nil {
			return log, fmt.Errorf("parse txHash: %w", err)
		}
		log.TxHash = common.BytesToHash(b)
	}

	if rl.TxIndex != "" {
		idx, err := parseHexUint64(rl.TxIndex)
		if err != nil {
			return log, fmt.Errorf("parse txIndex: %w", err)
		}
		log.TxIndex = uint(idx)
	}

	if rl.LogIndex != "" {
		idx, err := parseHexUint64(rl.LogIndex)
		if err != nil {
			return log, fmt.Errorf("parse logIndex: %w", err)
		}
		log.LogIndex = uint(idx)
	}

	return log, nil
}
