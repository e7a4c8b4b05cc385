package artifact

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const tokenArtifact = `{
  "contracts": {
    "Token.sol": {
      "Token": {
        "abi": [
          {"inputs": [{"internalType": "uint256", "name": "supply", "type": "uint256"}], "stateMutability": "nonpayable", "type": "constructor"},
          {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
        ],
        "metadata": "{}",
        "evm": {
          "bytecode": {"object": "6080604052348015600f57600080fd5b50", "sourceMap": "", "linkReferences": {}},
          "deployedBytecode": {"object": "6080604052", "linkReferences": {}}
        }
      }
    },
    "IERC20.sol": {
      "IERC20": {
        "abi": [],
        "metadata": "{}",
        "evm": {"bytecode": {"object": ""}, "deployedBytecode": {"object": ""}}
      }
    },
    "Uses.sol": {
      "UsesLib": {
        "abi": [],
        "metadata": "{}",
        "evm": {
          "bytecode": {"object": "6080__$1234567890abcdef1234567890abcdef12$__", "linkReferences": {"Lib.sol": {"Lib": [{"start": 2, "length": 20}]}}},
          "deployedBytecode": {"object": ""}
        }
      },
      "NoABI": {
        "metadata": "{}",
        "evm": {"bytecode": {"object": "6080"}, "deployedBytecode": {"object": ""}}
      },
      "HexPrefixed": {
        "abi": [],
        "metadata": "{}",
        "evm": {"bytecode": {"object": "0x"}, "deployedBytecode": {"object": "0x"}}
      }
    }
  }
}`

func commit(t *testing.T, s *Store, target string, raw string, extra map[string]string) {
	t.Helper()
	st, err := s.Stage(target)
	require.NoError(t, err)
	for name, content := range extra {
		require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), name), []byte(content), 0644))
	}
	require.NoError(t, st.Write([]byte(raw)))
	require.NoError(t, st.Commit())
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), testLogger())

	_, err := s.Read("Token")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, s.Exists("Token"))

	commit(t, s, "Token", tokenArtifact, map[string]string{"Token.sol": "contract Token {}"})

	assert.True(t, s.Exists("Token"))
	a, err := s.Read("Token")
	require.NoError(t, err)
	assert.Equal(t, tokenArtifact, string(a.Raw))

	src, err := os.ReadFile(filepath.Join(s.Dir("Token"), "Token.sol"))
	require.NoError(t, err)
	assert.Equal(t, "contract Token {}", string(src))

	info, err := s.Info("Token")
	require.NoError(t, err)
	assert.Equal(t, Hash([]byte(tokenArtifact)), info.Hash)
	assert.Equal(t, int64(len(tokenArtifact)), info.Size)
}

func TestStoreRebuildReplacesDirectory(t *testing.T) {
	s := NewStore(t.TempDir(), testLogger())

	commit(t, s, "Token", tokenArtifact, map[string]string{"Old.sol": "contract Old {}"})
	commit(t, s, "Token", tokenArtifact, map[string]string{"New.sol": "contract New {}"})

	_, err := os.Stat(filepath.Join(s.Dir("Token"), "Old.sol"))
	assert.True(t, os.IsNotExist(err), "stale source should be gone after rebuild")
	_, err = os.Stat(filepath.Join(s.Dir("Token"), "New.sol"))
	assert.NoError(t, err)

	commit(t, s, "Token", tokenArtifact, nil)

	// Besides the target path only the current and the replaced build remain
	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 3)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
		if e.Name() != "Token" {
			assert.True(t, strings.HasPrefix(e.Name(), ".Token.build-"), "unexpected entry %s", e.Name())
		}
	}
	assert.Contains(t, names, "Token")
}

func TestCommittedDirectoryMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	s := NewStore(t.TempDir(), testLogger())
	commit(t, s, "Token", tokenArtifact, nil)

	fi, err := os.Stat(s.Dir("Token"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Equal(t, os.FileMode(0755), fi.Mode().Perm())
}

func TestCommitNeverHidesBuild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("build links need symlink support")
	}
	s := NewStore(t.TempDir(), testLogger())
	commit(t, s, "Token", tokenArtifact, nil)

	done := make(chan struct{})
	var missing atomic.Int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, err := s.ReadRaw("Token"); err != nil {
				missing.Add(1)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		commit(t, s, "Token", tokenArtifact, map[string]string{"Token.sol": "contract Token {}"})
	}
	close(done)
	wg.Wait()

	assert.Zero(t, missing.Load(), "reads during rebuilds must see a build")
}

func TestCommitReplacesPlainDirectory(t *testing.T) {
	s := NewStore(t.TempDir(), testLogger())
	require.NoError(t, os.MkdirAll(s.Dir("Token"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir("Token"), "Old.sol"), []byte("contract Old {}"), 0644))

	commit(t, s, "Token", tokenArtifact, nil)

	a, err := s.Read("Token")
	require.NoError(t, err)
	assert.Equal(t, tokenArtifact, string(a.Raw))
	_, err = os.Stat(filepath.Join(s.Dir("Token"), "Old.sol"))
	assert.True(t, os.IsNotExist(err))
}

func TestStagingDiscardKeepsPreviousBuild(t *testing.T) {
	s := NewStore(t.TempDir(), testLogger())
	commit(t, s, "Token", tokenArtifact, nil)

	st, err := s.Stage("Token")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "Broken.sol"), []byte("contract {"), 0644))
	st.Discard()

	_, err = os.Stat(st.Dir())
	assert.True(t, os.IsNotExist(err))

	a, err := s.Read("Token")
	require.NoError(t, err)
	assert.Equal(t, tokenArtifact, string(a.Raw))
}

func TestStagingRejectsInvalidOutput(t *testing.T) {
	s := NewStore(t.TempDir(), testLogger())
	st, err := s.Stage("Token")
	require.NoError(t, err)
	defer st.Discard()

	assert.Error(t, st.Write([]byte("not json")))
	assert.Error(t, st.Commit(), "commit without compiled.json must fail")
	assert.False(t, s.Exists("Token"))
}

func TestContractLookup(t *testing.T) {
	a, err := Parse([]byte(tokenArtifact))
	require.NoError(t, err)

	tests := []struct {
		name    string
		file    string
		ctr     string
		wantErr error
	}{
		{"deployable", "Token.sol", "Token", nil},
		{"unknown file", "Missing.sol", "Token", ErrNotFound},
		{"unknown contract", "Token.sol", "Missing", ErrNotFound},
		{"interface has empty bytecode", "IERC20.sol", "IERC20", ErrUnbuildable},
		{"0x counts as empty", "Uses.sol", "HexPrefixed", ErrUnbuildable},
		{"missing abi", "Uses.sol", "NoABI", ErrUnbuildable},
		{"unlinked library", "Uses.sol", "UsesLib", ErrUnbuildable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := a.Contract(tt.file, tt.ctr)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)

			code, err := c.CreationCode()
			require.NoError(t, err)
			assert.NotEmpty(t, code)

			parsed, err := c.ParsedABI()
			require.NoError(t, err)
			assert.Len(t, parsed.Constructor.Inputs, 1)
			assert.Contains(t, parsed.Methods, "totalSupply")
		})
	}
}

func TestListAndDeployable(t *testing.T) {
	a, err := Parse([]byte(tokenArtifact))
	require.NoError(t, err)

	assert.Equal(t, []ContractRef{
		{File: "IERC20.sol", Name: "IERC20"},
		{File: "Token.sol", Name: "Token"},
		{File: "Uses.sol", Name: "HexPrefixed"},
		{File: "Uses.sol", Name: "NoABI"},
		{File: "Uses.sol", Name: "UsesLib"},
	}, a.List())
	assert.Equal(t, []ContractRef{{File: "Token.sol", Name: "Token"}}, a.Deployable())
}
