// Package chain reads on-chain state from an EVM JSON-RPC endpoint.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrChainIDMismatch is returned when the endpoint serves a different network.
var ErrChainIDMismatch = errors.New("chain id mismatch")

// CodeReader returns the runtime bytecode stored at an address.
type CodeReader interface {
	CodeAt(ctx context.Context, address string) ([]byte, error)
}

// Client wraps a go-ethereum RPC client.
type Client struct {
	eth    *ethclient.Client
	rpcURL string
	logger *slog.Logger
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &Client{
		eth:    eth,
		rpcURL: rpcURL,
		logger: logger.With("component", "chain"),
	}, nil
}

// CodeAt returns the code at the latest block.
func (c *Client) CodeAt(ctx context.Context, address string) ([]byte, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	code, err := c.eth.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("get code at %s: %w", address, err)
	}
	c.logger.Debug("fetched code", "address", address, "bytes", len(code))
	return code, nil
}

// CheckChainID fails when the endpoint's chain id differs from want.
// A zero want skips the check.
func (c *Client) CheckChainID(ctx context.Context, want uint64) error {
	if want == 0 {
		return nil
	}
	got, err := c.eth.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if got.Cmp(new(big.Int).SetUint64(want)) != 0 {
		return fmt.Errorf("%w: %s serves %s, expected %d", ErrChainIDMismatch, c.rpcURL, got, want)
	}
	return nil
}

// Close closes the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
