// Package verify compares code deployed on chain with build artifacts.
package verify

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor"

	"github.com/pendergraft/contraship/internal/artifact"
	"github.com/pendergraft/contraship/internal/observability/metrics"
)

// Match types
const (
	MatchFull    = "full"
	MatchPartial = "partial"
	MatchNone    = "none"
)

// Result is the outcome of comparing deployed and expected runtime code
type Result struct {
	Match     bool   `json:"match"`
	MatchType string `json:"matchType"`
	Message   string `json:"message"`
	Address   string `json:"address,omitempty"`
	// DeployedCompiler is the solc version recorded in the on-chain metadata
	DeployedCompiler string `json:"deployedCompiler,omitempty"`
}

// CodeReader fetches the code stored at an address
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Verifier checks deployed contracts against their artifacts
type Verifier struct {
	reader CodeReader
	logger *slog.Logger
}

// NewVerifier creates a verifier over reader
func NewVerifier(reader CodeReader, logger *slog.Logger) *Verifier {
	return &Verifier{reader: reader, logger: logger}
}

// Verify fetches the code at address and compares it to the contract's deployed bytecode
func (v *Verifier) Verify(ctx context.Context, address common.Address, contract *artifact.ContractOutput) (*Result, error) {
	expected, err := contract.RuntimeCode()
	if err != nil {
		return nil, err
	}

	deployed, err := v.reader.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching code at %s: %w", address.Hex(), err)
	}

	var result *Result
	if len(deployed) == 0 {
		result = &Result{MatchType: MatchNone, Message: "No code at address"}
	} else {
		result = CompareBytecode(deployed, expected)
		if _, meta, ok := SplitMetadata(deployed); ok {
			result.DeployedCompiler = meta.CompilerVersion()
		}
	}
	result.Address = address.Hex()

	metrics.Verification(result.MatchType)
	v.logger.Debug("verified deployment",
		"address", result.Address,
		"match", result.MatchType,
		"deployed_size", len(deployed),
		"expected_size", len(expected),
	)
	return result, nil
}

// CompareBytecode compares deployed runtime code to the artifact's runtime code
func CompareBytecode(deployed, expected []byte) *Result {
	if bytes.Equal(deployed, expected) {
		return &Result{
			Match:     true,
			MatchType: MatchFull,
			Message:   "Bytecode matches exactly including metadata",
		}
	}

	if bytes.Equal(StripMetadata(deployed), StripMetadata(expected)) {
		return &Result{
			Match:     true,
			MatchType: MatchPartial,
			Message:   "Executable code matches, metadata differs",
		}
	}

	return &Result{
		MatchType: MatchNone,
		Message:   "Bytecode does not match",
	}
}

// Metadata is the CBOR map solc appends to runtime code
type Metadata map[string]any

// CompilerVersion returns the solc version stored under "solc", or "" when absent
func (m Metadata) CompilerVersion() string {
	v, ok := m["solc"].([]byte)
	if !ok || len(v) != 3 {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// SplitMetadata separates runtime code from the metadata trailer.
// The last two bytes hold the big-endian length of the CBOR map before them.
// ok is false when code has no decodable trailer.
func SplitMetadata(code []byte) (body []byte, meta Metadata, ok bool) {
	if len(code) < 2 {
		return code, nil, false
	}
	n := int(binary.BigEndian.Uint16(code[len(code)-2:]))
	start := len(code) - 2 - n
	if n == 0 || start < 0 || !isCBORMap(code[start]) {
		return code, nil, false
	}

	var m map[string]any
	if err := cbor.Unmarshal(code[start:len(code)-2], &m); err != nil {
		return code, nil, false
	}
	return code[:start], Metadata(m), true
}

// StripMetadata removes the metadata trailer, returning code unchanged when there is none
func StripMetadata(code []byte) []byte {
	body, _, _ := SplitMetadata(code)
	return body
}

// isCBORMap reports whether b starts a CBOR map (major type 5)
func isCBORMap(b byte) bool {
	return b&0xe0 == 0xa0
}
