// Package chain queries an Ethereum node provider.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// codeReader is the subset of ethclient.Client the checker needs
type codeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// CodeChecker reports whether an address holds deployed bytecode
type CodeChecker struct {
	client codeReader
	closer func()
	logger *zap.Logger
}

// Dial connects to the node at rpcURL
func Dial(ctx context.Context, rpcURL string, logger *zap.Logger) (*CodeChecker, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial node provider: %w", err)
	}
	return &CodeChecker{
		client: client,
		closer: client.Close,
		logger: logger,
	}, nil
}

// HasCode calls eth_getCode at the latest block
func (c *CodeChecker) HasCode(ctx context.Context, address string) (bool, error) {
	code, err := c.client.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, fmt.Errorf("eth_getCode %s: %w", address, err)
	}

	c.logger.Debug("contract code checked",
		zap.String("address", address),
		zap.Int("code_size", len(code)))

	return len(code) > 0, nil
}

// Close releases the node connection
func (c *CodeChecker) Close() {
	if c.closer != nil {
		c.closer()
	}
}
