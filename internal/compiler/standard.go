package compiler

import "encoding/json"

// outputs requested for every contract in every file
var contractOutputs = []string{
	"abi",
	"metadata",
	"evm.bytecode",
	"evm.deployedBytecode",
}

// standardJSONInput is the solc --standard-json request
type standardJSONInput struct {
	Language string                   `json:"language"`
	Sources  map[string]sourceContent `json:"sources"`
	Settings standardJSONSettings     `json:"settings"`
}

type sourceContent struct {
	Content string `json:"content"`
}

type standardJSONSettings struct {
	Optimizer       optimizerSettings              `json:"optimizer"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type optimizerSettings struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// standardJSONOutput holds the parts of the solc response the invoker inspects
type standardJSONOutput struct {
	Errors    []Diagnostic                          `json:"errors"`
	Contracts map[string]map[string]json.RawMessage `json:"contracts"`
}

func newStandardInput(in Input) standardJSONInput {
	sources := make(map[string]sourceContent, len(in.Sources))
	for name, content := range in.Sources {
		sources[name] = sourceContent{Content: content}
	}

	return standardJSONInput{
		Language: "Solidity",
		Sources:  sources,
		Settings: standardJSONSettings{
			Optimizer: optimizerSettings{
				Enabled: in.Optimizer.Enabled,
				Runs:    in.Optimizer.Runs,
			},
			OutputSelection: map[string]map[string][]string{
				"*": {"*": contractOutputs},
			},
		},
	}
}
