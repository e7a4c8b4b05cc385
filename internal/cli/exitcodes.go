package cli

import (
	"errors"

	"github.com/pendergraft/contraship/internal/artifact"
	"github.com/pendergraft/contraship/internal/build"
	"github.com/pendergraft/contraship/internal/chain"
	"github.com/pendergraft/contraship/internal/compiler"
	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/deploy"
)

// Process exit codes, one per error class
const (
	ExitOK             = 0
	ExitError          = 1
	ExitConfiguration  = 2
	ExitIO             = 3
	ExitCompilation    = 4
	ExitArtifact       = 5
	ExitEncoding       = 6
	ExitTransaction    = 7
	ExitReverted       = 8
	ExitConnectivity   = 9
	ExitReceiptTimeout = 10
)

// ExitCode maps an error returned by Execute to the process exit code
func ExitCode(err error) int {
	var compileErr *compiler.CompilationError
	var reverted *deploy.ExecutionRevertedError

	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrUnexpectedParameters),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrNotFound),
		errors.Is(err, chain.ErrInvalidKey),
		errors.Is(err, chain.ErrSignerMismatch):
		return ExitConfiguration
	case errors.Is(err, build.ErrSourceNotFound):
		return ExitIO
	case errors.As(err, &compileErr),
		errors.Is(err, compiler.ErrVersionMismatch),
		errors.Is(err, build.ErrPragmaMismatch),
		errors.Is(err, compiler.ErrCompilerNotFound),
		errors.Is(err, compiler.ErrCompilerFailed):
		return ExitCompilation
	case errors.Is(err, artifact.ErrNotFound), errors.Is(err, artifact.ErrUnbuildable):
		return ExitArtifact
	case errors.Is(err, deploy.ErrEncoding):
		return ExitEncoding
	case errors.Is(err, deploy.ErrGasEstimation), errors.Is(err, deploy.ErrSubmission):
		return ExitTransaction
	case errors.As(err, &reverted):
		return ExitReverted
	case errors.Is(err, chain.ErrConnectivity):
		return ExitConnectivity
	case errors.Is(err, deploy.ErrReceiptTimeout):
		return ExitReceiptTimeout
	}
	return ExitError
}
