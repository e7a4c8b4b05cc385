package deploy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller executes read-only calls
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Contract is a handle to a deployed contract
type Contract struct {
	Address common.Address
	ABI     abi.ABI
	caller  Caller
}

// NewContract binds address and ABI to a backend
func NewContract(address common.Address, parsed abi.ABI, caller Caller) *Contract {
	return &Contract{Address: address, ABI: parsed, caller: caller}
}

// Call invokes a view method at the latest block and returns its decoded outputs.
// Arguments must already be the Go types the ABI encoder expects.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncoding, method, err)
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.Address, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", method, c.Address.Hex(), err)
	}

	values, err := c.ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", method, err)
	}
	return values, nil
}

// CallLiteral is Call with arguments given as a literal, coerced against the method inputs
func (c *Contract) CallLiteral(ctx context.Context, method, literal string) ([]any, error) {
	m, ok := c.ABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: no method %q", ErrEncoding, method)
	}
	args, err := ParseArgs(literal)
	if err != nil {
		return nil, err
	}
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrEncoding, method, len(m.Inputs), len(args))
	}
	values, err := coerceArgs(m.Inputs, args)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, method, values...)
}
