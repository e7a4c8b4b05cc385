package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/pendergraft/contraship/internal/validation"
)

var versionRegex = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Solc runs a solc binary pinned to one version
type Solc struct {
	path    string
	version string
	logger  *slog.Logger
}

// NewSolc creates an invoker for the binary at path, pinned to version
func NewSolc(path, version string, logger *slog.Logger) *Solc {
	return &Solc{
		path:    path,
		version: validation.NormalizeVersion(version),
		logger:  logger,
	}
}

// Path returns the binary path
func (s *Solc) Path() string {
	return s.path
}

// BinaryVersion runs `solc --version` and returns the X.Y.Z it reports
func (s *Solc) BinaryVersion(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, s.path, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: running %s --version: %v: %s", ErrCompilerFailed, s.path, err, strings.TrimSpace(string(out)))
	}
	return parseVersion(out)
}

// CheckVersion verifies the binary reports the pinned version
func (s *Solc) CheckVersion(ctx context.Context) error {
	got, err := s.BinaryVersion(ctx)
	if err != nil {
		return err
	}
	if !validation.SameVersion(got, s.version) {
		return fmt.Errorf("%w: %s reports %s, pinned %s", ErrVersionMismatch, s.path, got, s.version)
	}
	return nil
}

// Compile runs solc --standard-json over the input
func (s *Solc) Compile(ctx context.Context, in Input) (*Output, error) {
	if err := s.CheckVersion(ctx); err != nil {
		return nil, err
	}

	request, err := json.Marshal(newStandardInput(in))
	if err != nil {
		return nil, fmt.Errorf("encoding compiler input: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path, "--standard-json")
	cmd.Stdin = bytes.NewReader(request)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrCompilerFailed, err, strings.TrimSpace(stderr.String()))
	}

	raw := stdout.Bytes()
	out, err := parseOutput(raw)
	if err != nil {
		return nil, err
	}
	out.Version = s.version

	s.logger.Debug("solc finished",
		"path", s.path,
		"version", s.version,
		"sources", len(in.Sources),
		"diagnostics", len(out.Diagnostics),
		"duration", time.Since(start),
	)
	return out, nil
}

// parseOutput splits diagnostics from the raw output and fails on any error-severity diagnostic
func parseOutput(raw []byte) (*Output, error) {
	var parsed standardJSONOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding output: %v", ErrCompilerFailed, err)
	}

	for _, d := range parsed.Errors {
		if d.IsError() {
			return nil, &CompilationError{Diagnostics: parsed.Errors}
		}
	}

	return &Output{
		Raw:         raw,
		Diagnostics: parsed.Errors,
	}, nil
}

func parseVersion(out []byte) (string, error) {
	v := versionRegex.FindString(string(out))
	if v == "" {
		return "", fmt.Errorf("%w: could not parse version from %q", ErrCompilerFailed, strings.TrimSpace(string(out)))
	}
	return v, nil
}
