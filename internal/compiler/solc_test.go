package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraship/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const fakeSolcScript = `#!/bin/sh
dir=$(dirname "$0")
if [ "$1" = "--version" ]; then
  echo "solc, the solidity compiler commandline interface"
  echo "Version: $(cat "$dir/version")+commit.a1b10f93.Linux.g++"
  exit 0
fi
cat > "$dir/input.json"
cat "$dir/output.json"
`

const successOutput = `{
  "errors": [
    {"component": "general", "formattedMessage": "Warning: SPDX license identifier not provided", "message": "SPDX license identifier not provided", "severity": "warning", "type": "Warning"}
  ],
  "contracts": {
    "Token.sol": {
      "Token": {
        "abi": [{"inputs": [], "stateMutability": "nonpayable", "type": "constructor"}],
        "metadata": "{}",
        "evm": {
          "bytecode": {"object": "6080604052", "sourceMap": "1:2:3", "linkReferences": {}},
          "deployedBytecode": {"object": "60806040", "sourceMap": "", "linkReferences": {}}
        }
      }
    }
  },
  "sources": {"Token.sol": {"id": 0}}
}`

const failureOutput = `{
  "errors": [
    {"component": "general", "formattedMessage": "ParserError: Expected ';' but got '}'\n --> Token.sol:3:1:\n", "message": "Expected ';' but got '}'", "severity": "error", "type": "ParserError", "errorCode": "2314", "sourceLocation": {"file": "Token.sol", "start": 42, "end": 43}},
    {"component": "general", "message": "Unused variable", "severity": "warning", "type": "Warning"}
  ]
}`

// fakeSolc writes a shell script that answers --version and echoes a canned standard JSON output
func fakeSolc(t *testing.T, version, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "solc")
	require.NoError(t, os.WriteFile(path, []byte(fakeSolcScript), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "version"), []byte(version), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.json"), []byte(output), 0644))
	return path
}

func TestSolcCompile(t *testing.T) {
	path := fakeSolc(t, "0.8.20", successOutput)
	solc := NewSolc(path, "0.8.20", testLogger())

	out, err := solc.Compile(context.Background(), Input{
		Sources:   map[string]string{"Token.sol": "contract Token {}"},
		Optimizer: Optimizer{Enabled: true, Runs: 200},
	})
	require.NoError(t, err)

	assert.Equal(t, successOutput, string(out.Raw))
	assert.Equal(t, "0.8.20", out.Version)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, "warning", out.Diagnostics[0].Severity)

	// The compiler received a standard JSON request with the pinned settings
	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "input.json"))
	require.NoError(t, err)

	var req standardJSONInput
	require.NoError(t, json.Unmarshal(data, &req))
	assert.Equal(t, "Solidity", req.Language)
	assert.Equal(t, "contract Token {}", req.Sources["Token.sol"].Content)
	assert.True(t, req.Settings.Optimizer.Enabled)
	assert.Equal(t, 200, req.Settings.Optimizer.Runs)
	assert.ElementsMatch(t, []string{"abi", "metadata", "evm.bytecode", "evm.deployedBytecode"}, req.Settings.OutputSelection["*"]["*"])
}

func TestSolcCompileError(t *testing.T) {
	path := fakeSolc(t, "0.8.20", failureOutput)
	solc := NewSolc(path, "0.8.20", testLogger())

	_, err := solc.Compile(context.Background(), Input{Sources: map[string]string{"Token.sol": "contract Token {"}})
	require.Error(t, err)

	var compErr *CompilationError
	require.True(t, errors.As(err, &compErr))
	require.Len(t, compErr.Diagnostics, 2)
	assert.Equal(t, "ParserError", compErr.Diagnostics[0].Type)
	assert.Equal(t, "2314", compErr.Diagnostics[0].ErrorCode)
	assert.Equal(t, "Token.sol", compErr.Diagnostics[0].SourceLocation.File)
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Contains(t, err.Error(), "Expected ';' but got '}'")
}

func TestSolcVersionMismatch(t *testing.T) {
	path := fakeSolc(t, "0.8.19", successOutput)
	solc := NewSolc(path, "0.8.20", testLogger())

	_, err := solc.Compile(context.Background(), Input{Sources: map[string]string{"Token.sol": "contract Token {}"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionMismatch))

	// No compilation was attempted
	_, statErr := os.Stat(filepath.Join(filepath.Dir(path), "input.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSolcGarbageOutput(t *testing.T) {
	path := fakeSolc(t, "0.8.20", "not json")
	solc := NewSolc(path, "0.8.20", testLogger())

	_, err := solc.Compile(context.Background(), Input{Sources: map[string]string{"Token.sol": ""}})
	assert.True(t, errors.Is(err, ErrCompilerFailed))
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    string
		wantErr bool
	}{
		{"release", "solc, the solidity compiler commandline interface\nVersion: 0.8.20+commit.a1b10f93.Linux.g++\n", "0.8.20", false},
		{"old", "Version: 0.4.26+commit.4563c3fc.Darwin.appleclang", "0.4.26", false},
		{"garbage", "command not found", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersion([]byte(tt.out))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := fakeSolc(t, "0.8.20", successOutput)
		solc, err := Resolve(context.Background(), config.CompilerConfig{Version: "0.8.20", SolcPath: path}, testLogger())
		require.NoError(t, err)
		assert.Equal(t, path, solc.Path())
	})

	t.Run("explicit path with wrong version does not fall back", func(t *testing.T) {
		path := fakeSolc(t, "0.8.19", successOutput)
		installedDir := t.TempDir()
		installed := InstalledPath(installedDir, "0.8.20")
		require.NoError(t, os.Rename(fakeSolc(t, "0.8.20", successOutput), installed))

		_, err := Resolve(context.Background(), config.CompilerConfig{Version: "0.8.20", SolcPath: path, SolcDir: installedDir}, testLogger())
		assert.True(t, errors.Is(err, ErrVersionMismatch))
	})

	t.Run("installed binary", func(t *testing.T) {
		src := fakeSolc(t, "0.8.20", successOutput)
		installedDir := filepath.Dir(src)
		installed := InstalledPath(installedDir, "0.8.20")
		require.NoError(t, os.Rename(src, installed))

		solc, err := Resolve(context.Background(), config.CompilerConfig{Version: "0.8.20", SolcDir: installedDir}, testLogger())
		require.NoError(t, err)
		assert.Equal(t, installed, solc.Path())
	})

	t.Run("missing explicit path", func(t *testing.T) {
		_, err := Resolve(context.Background(), config.CompilerConfig{Version: "0.8.20", SolcPath: filepath.Join(t.TempDir(), "solc")}, testLogger())
		assert.True(t, errors.Is(err, ErrCompilerNotFound))
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())
		_, err := Resolve(context.Background(), config.CompilerConfig{Version: "0.8.20", SolcDir: t.TempDir()}, testLogger())
		assert.True(t, errors.Is(err, ErrCompilerNotFound))
	})
}
