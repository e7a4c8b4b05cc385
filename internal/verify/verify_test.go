package verify

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraship/internal/artifact"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// code + a2 64 'ipfs' 42 <2 bytes> + 64 'solc' 43 <3 bytes> + length
func withMetadata(code string, seed byte) []byte {
	b, _ := hex.DecodeString(code)
	meta := []byte{0xa2, 0x64, 'i', 'p', 'f', 's', 0x42, seed, seed, 0x64, 's', 'o', 'l', 'c', 0x43, 0x00, 0x08, 0x18}
	out := append(append([]byte{}, b...), meta...)
	return append(out, 0x00, byte(len(meta)))
}

func TestStripMetadata(t *testing.T) {
	plain, _ := hex.DecodeString("608060405234801561001057600080fd5b50")

	tests := []struct {
		name string
		code []byte
		want []byte
	}{
		{"no metadata", plain, plain},
		{"with metadata", withMetadata("608060405234801561001057600080fd5b50", 1), plain},
		{"empty", nil, nil},
		{"single byte", []byte{0x60}, []byte{0x60}},
		{"length past start", []byte{0x60, 0x00, 0xff}, []byte{0x60, 0x00, 0xff}},
		{"not a cbor map", []byte{0x60, 0x60, 0x00, 0x01}, []byte{0x60, 0x60, 0x00, 0x01}},
		{"truncated cbor map", []byte{0x60, 0xa2, 0x00, 0x01}, []byte{0x60, 0xa2, 0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMetadata(tt.code))
		})
	}
}

func TestSplitMetadata(t *testing.T) {
	body, meta, ok := SplitMetadata(withMetadata("6080604052", 7))
	require.True(t, ok)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, body)
	assert.Equal(t, []byte{7, 7}, meta["ipfs"])
	assert.Equal(t, "0.8.24", meta.CompilerVersion())

	_, _, ok = SplitMetadata([]byte{0x60, 0x80})
	assert.False(t, ok)

	assert.Equal(t, "", Metadata{"solc": "0.8.24"}.CompilerVersion())
}

func TestCompareBytecode(t *testing.T) {
	tests := []struct {
		name      string
		deployed  []byte
		expected  []byte
		wantMatch bool
		wantType  string
	}{
		{
			name:      "exact match",
			deployed:  withMetadata("6080604052", 1),
			expected:  withMetadata("6080604052", 1),
			wantMatch: true,
			wantType:  MatchFull,
		},
		{
			name:      "metadata differs",
			deployed:  withMetadata("6080604052", 1),
			expected:  withMetadata("6080604052", 2),
			wantMatch: true,
			wantType:  MatchPartial,
		},
		{
			name:      "code differs",
			deployed:  withMetadata("6080604052", 1),
			expected:  withMetadata("6080604053", 1),
			wantMatch: false,
			wantType:  MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareBytecode(tt.deployed, tt.expected)
			assert.Equal(t, tt.wantMatch, got.Match)
			assert.Equal(t, tt.wantType, got.MatchType)
		})
	}
}

type codeReader struct {
	code map[common.Address][]byte
	err  error
}

func (r *codeReader) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.code[account], nil
}

func TestVerifier(t *testing.T) {
	addr := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	runtime := withMetadata("6080604052", 1)

	contract := &artifact.ContractOutput{}
	contract.EVM.DeployedBytecode.Object = hex.EncodeToString(withMetadata("6080604052", 3))

	reader := &codeReader{code: map[common.Address][]byte{addr: runtime}}
	v := NewVerifier(reader, testLogger())

	result, err := v.Verify(context.Background(), addr, contract)
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.Equal(t, MatchPartial, result.MatchType)
	assert.Equal(t, addr.Hex(), result.Address)
	assert.Equal(t, "0.8.24", result.DeployedCompiler)

	empty := common.HexToAddress("0x0000000000000000000000000000000000000001")
	result, err = v.Verify(context.Background(), empty, contract)
	require.NoError(t, err)
	assert.False(t, result.Match)
	assert.Equal(t, MatchNone, result.MatchType)

	reader.err = errors.New("connection refused")
	_, err = v.Verify(context.Background(), addr, contract)
	assert.Error(t, err)
}
