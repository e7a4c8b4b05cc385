// Package artifact persists and loads compiler output per build target.
package artifact

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	// ErrNotFound is returned when a target has no build or the build lacks a contract
	ErrNotFound = errors.New("artifact not found")

	// ErrUnbuildable is returned for contract entries that cannot be deployed
	// (missing ABI, empty bytecode, or unlinked libraries)
	ErrUnbuildable = errors.New("artifact not deployable")
)

// CompiledArtifact is the parsed compiled.json of a target
type CompiledArtifact struct {
	Contracts map[string]map[string]ContractOutput `json:"contracts"`
	Sources   map[string]json.RawMessage           `json:"sources,omitempty"`

	// Raw is the file content exactly as the compiler produced it
	Raw []byte `json:"-"`
}

// ContractOutput is one contract's compiler output
type ContractOutput struct {
	ABI      json.RawMessage `json:"abi"`
	Metadata string          `json:"metadata"`
	EVM      EVMOutput       `json:"evm"`
}

// EVMOutput holds creation and runtime bytecode
type EVMOutput struct {
	Bytecode         BytecodeObject `json:"bytecode"`
	DeployedBytecode BytecodeObject `json:"deployedBytecode"`
}

// BytecodeObject is a hex bytecode blob with its source map and link references
type BytecodeObject struct {
	Object         string                       `json:"object"`
	SourceMap      string                       `json:"sourceMap,omitempty"`
	LinkReferences map[string]map[string][]Link `json:"linkReferences,omitempty"`
}

// Link is a library placeholder position in bytecode
type Link struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// ContractRef names a contract within an artifact
type ContractRef struct {
	File string `json:"file"`
	Name string `json:"name"`
}

func (r ContractRef) String() string {
	return r.File + ":" + r.Name
}

// Parse decodes compiled.json content
func Parse(raw []byte) (*CompiledArtifact, error) {
	var a CompiledArtifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	a.Raw = raw
	return &a, nil
}

// Contract resolves a contract by file key and name and checks it is deployable
func (a *CompiledArtifact) Contract(fileKey, name string) (*ContractOutput, error) {
	file, ok := a.Contracts[fileKey]
	if !ok {
		return nil, fmt.Errorf("%w: no file %q in build", ErrNotFound, fileKey)
	}
	c, ok := file[name]
	if !ok {
		return nil, fmt.Errorf("%w: no contract %q in %s", ErrNotFound, name, fileKey)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s:%s: %w", fileKey, name, err)
	}
	return &c, nil
}

// List returns every contract in the artifact, sorted by file then name
func (a *CompiledArtifact) List() []ContractRef {
	var refs []ContractRef
	for file, contracts := range a.Contracts {
		for name := range contracts {
			refs = append(refs, ContractRef{File: file, Name: name})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].File != refs[j].File {
			return refs[i].File < refs[j].File
		}
		return refs[i].Name < refs[j].Name
	})
	return refs
}

// Deployable returns the contracts that pass Validate
func (a *CompiledArtifact) Deployable() []ContractRef {
	var refs []ContractRef
	for _, ref := range a.List() {
		c := a.Contracts[ref.File][ref.Name]
		if c.Validate() == nil {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Validate checks the entry has an ABI and non-empty, fully linked bytecode.
// Interfaces and abstract contracts compile to empty bytecode and fail here.
func (c *ContractOutput) Validate() error {
	trimmed := strings.TrimSpace(string(c.ABI))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("%w: missing abi", ErrUnbuildable)
	}
	if isEmptyBytecode(c.EVM.Bytecode.Object) {
		return fmt.Errorf("%w: empty bytecode", ErrUnbuildable)
	}
	if len(c.EVM.Bytecode.LinkReferences) > 0 || strings.Contains(c.EVM.Bytecode.Object, "__$") {
		return fmt.Errorf("%w: bytecode references unlinked libraries", ErrUnbuildable)
	}
	return nil
}

// CreationCode decodes the creation bytecode
func (c *ContractOutput) CreationCode() ([]byte, error) {
	return decodeHex(c.EVM.Bytecode.Object)
}

// RuntimeCode decodes the deployed bytecode
func (c *ContractOutput) RuntimeCode() ([]byte, error) {
	return decodeHex(c.EVM.DeployedBytecode.Object)
}

// ParsedABI parses the contract ABI
func (c *ContractOutput) ParsedABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(string(c.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%w: parsing abi: %v", ErrUnbuildable, err)
	}
	return parsed, nil
}

func isEmptyBytecode(object string) bool {
	return strings.TrimPrefix(strings.TrimSpace(object), "0x") == ""
}

func decodeHex(object string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(object), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bytecode hex: %v", ErrUnbuildable, err)
	}
	return b, nil
}
