package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pendergraft/contraship/internal/artifact"
	"github.com/pendergraft/contraship/internal/compiler"
	"github.com/pendergraft/contraship/internal/observability/metrics"
	"github.com/pendergraft/contraship/internal/storage"
)

// BuildResult describes a committed build
type BuildResult struct {
	Target          string                 `json:"target"`
	Dir             string                 `json:"dir"`
	Hash            string                 `json:"hash"`
	CompilerVersion string                 `json:"compilerVersion"`
	Contracts       []artifact.ContractRef `json:"contracts"`
	Deployable      []artifact.ContractRef `json:"deployable"`
	Warnings        []compiler.Diagnostic  `json:"warnings,omitempty"`
}

// Build bundles, compiles and commits one target.
// The previous build of the target stays in place unless every step succeeds.
func (e *Env) Build(ctx context.Context, name string) (result *BuildResult, err error) {
	start := time.Now()
	defer func() {
		metrics.Build(name, buildStatus(err), time.Since(start))
	}()

	if e.Compiler == nil {
		return nil, errors.New("no compiler configured")
	}
	target, err := e.Config.Target(name)
	if err != nil {
		return nil, err
	}

	staging, err := e.Artifacts.Stage(name)
	if err != nil {
		return nil, err
	}
	defer staging.Discard()

	bundle, err := e.bundler().Bundle(target, staging.Dir())
	if err != nil {
		return nil, err
	}
	if err := bundle.CheckPragmas(e.Config.Compiler.Version); err != nil {
		return nil, err
	}

	out, err := e.Compiler.Compile(ctx, compiler.Input{
		Sources: bundle,
		Optimizer: compiler.Optimizer{
			Enabled: e.Config.Compiler.Optimizer.Enabled,
			Runs:    e.Config.Compiler.Optimizer.Runs,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}

	compiled, err := artifact.Parse(out.Raw)
	if err != nil {
		return nil, err
	}
	if err := staging.Write(out.Raw); err != nil {
		return nil, err
	}
	if err := staging.Commit(); err != nil {
		return nil, err
	}

	result = &BuildResult{
		Target:          name,
		Dir:             e.Artifacts.Dir(name),
		Hash:            artifact.Hash(out.Raw),
		CompilerVersion: out.Version,
		Contracts:       compiled.List(),
		Deployable:      compiled.Deployable(),
		Warnings:        out.Diagnostics,
	}

	e.Logger.Info("build committed",
		"target", name,
		"contracts", len(result.Contracts),
		"hash", result.Hash,
		"duration", time.Since(start),
	)

	e.recordBuild(ctx, result)
	return result, nil
}

// recordBuild indexes a committed build; the build stands even if indexing fails
func (e *Env) recordBuild(ctx context.Context, result *BuildResult) {
	if e.Builds == nil {
		return
	}
	err := e.Builds.RecordBuild(ctx, &storage.Build{
		Target:          result.Target,
		CompilerVersion: result.CompilerVersion,
		ArtifactHash:    result.Hash,
		ContractCount:   len(result.Contracts),
	})
	if err != nil {
		e.Logger.Warn("failed to record build", "target", result.Target, "error", err)
	}
}

func buildStatus(err error) string {
	var compileErr *compiler.CompilationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &compileErr):
		return "compile_error"
	}
	return "error"
}
