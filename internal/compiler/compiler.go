// Package compiler invokes a pinned Solidity compiler through its standard JSON interface.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVersionMismatch is returned when the resolved binary is not the pinned version
	ErrVersionMismatch = errors.New("compiler version mismatch")

	// ErrCompilerNotFound is returned when no binary can be resolved for the pinned version
	ErrCompilerNotFound = errors.New("compiler not found")

	// ErrCompilerFailed is returned when the compiler process fails or emits unreadable output
	ErrCompilerFailed = errors.New("compiler failed")
)

// Compiler compiles a set of sources
type Compiler interface {
	Compile(ctx context.Context, in Input) (*Output, error)
}

// Input is one compilation unit
type Input struct {
	// Sources maps logical file name to content
	Sources   map[string]string
	Optimizer Optimizer
}

// Optimizer holds optimizer settings
type Optimizer struct {
	Enabled bool
	Runs    int
}

// Output is the result of a successful compilation
type Output struct {
	// Raw is the compiler's JSON output, kept verbatim
	Raw []byte
	// Diagnostics holds warnings and infos; errors are returned as *CompilationError
	Diagnostics []Diagnostic
	// Version is the compiler version that produced the output
	Version string
}

// Diagnostic is a single compiler message
type Diagnostic struct {
	Severity         string          `json:"severity"`
	Type             string          `json:"type"`
	Component        string          `json:"component"`
	Message          string          `json:"message"`
	FormattedMessage string          `json:"formattedMessage,omitempty"`
	ErrorCode        string          `json:"errorCode,omitempty"`
	SourceLocation   *SourceLocation `json:"sourceLocation,omitempty"`
}

// SourceLocation points into a source file
type SourceLocation struct {
	File  string `json:"file"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// IsError reports whether the diagnostic fails the compilation
func (d Diagnostic) IsError() bool {
	return d.Severity == "error"
}

// String returns the formatted message, falling back to type and message
func (d Diagnostic) String() string {
	if d.FormattedMessage != "" {
		return strings.TrimRight(d.FormattedMessage, "\n")
	}
	if d.SourceLocation != nil {
		return fmt.Sprintf("%s: %s (%s:%d)", d.Type, d.Message, d.SourceLocation.File, d.SourceLocation.Start)
	}
	return fmt.Sprintf("%s: %s", d.Type, d.Message)
}

// CompilationError carries the diagnostics of a failed compilation verbatim
type CompilationError struct {
	Diagnostics []Diagnostic
}

func (e *CompilationError) Error() string {
	var msgs []string
	for _, d := range e.Diagnostics {
		if d.IsError() {
			msgs = append(msgs, d.String())
		}
	}
	return fmt.Sprintf("compilation failed with %d error(s):\n%s", len(msgs), strings.Join(msgs, "\n"))
}
