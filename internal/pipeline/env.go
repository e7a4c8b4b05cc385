// Package pipeline wires the build and deploy stages together.
//
// An Env carries everything a stage needs explicitly: configuration, logger,
// artifact store, compiler, chain backend, signer and the optional ledger.
// Commands build one Env per invocation and pass it down; nothing is global.
package pipeline

import (
	"log/slog"
	"math/big"
	"sync"

	"github.com/pendergraft/contraship/internal/artifact"
	"github.com/pendergraft/contraship/internal/build"
	"github.com/pendergraft/contraship/internal/chain"
	"github.com/pendergraft/contraship/internal/compiler"
	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/deploy"
	"github.com/pendergraft/contraship/internal/deployments/domain"
	"github.com/pendergraft/contraship/internal/storage"
)

// Env holds the dependencies of one pipeline invocation
type Env struct {
	Config    *config.Config
	Logger    *slog.Logger
	Artifacts *artifact.Store

	// Compiler is required by Build
	Compiler compiler.Compiler

	// Backend, ChainID and Signer are required by Deploy and Verify
	Backend chain.Backend
	ChainID *big.Int
	Signer  deploy.TxSigner

	seqOnce sync.Once
	seq     *deploy.Sequencer

	// Builds and Deployments are nil when storage is disabled
	Builds      storage.BuildStore
	Deployments domain.Service
}

// New creates an Env with an artifact store rooted at the configured build directory
func New(cfg *config.Config, logger *slog.Logger) *Env {
	return &Env{
		Config:    cfg,
		Logger:    logger,
		Artifacts: artifact.NewStore(cfg.BuildDir, logger),
	}
}

// WithLedger attaches the build index and deployment ledger of store
func (e *Env) WithLedger(store storage.Store) *Env {
	e.Builds = store
	e.Deployments = domain.NewService(store)
	return e
}

func (e *Env) bundler() *build.Bundler {
	return build.NewBundler(e.Logger)
}

// WaitPolicy returns the receipt wait policy from the deploy configuration
func (e *Env) WaitPolicy() deploy.WaitPolicy {
	return deploy.WaitPolicy{
		InitialInterval: e.Config.Deploy.ReceiptPollInitial,
		MaxInterval:     e.Config.Deploy.ReceiptPollMax,
		Timeout:         e.Config.Deploy.ReceiptTimeout,
	}
}

// Deployer returns the deploy service for the Env's backend and signer, wrapped with logging.
// Every deployer from one Env shares a sequencer, so concurrent deploys from
// the same account never pick the same nonce.
func (e *Env) Deployer(opts ...deploy.Option) deploy.Service {
	e.seqOnce.Do(func() {
		e.seq = deploy.NewSequencer(e.Backend, e.Logger)
	})
	opts = append([]deploy.Option{deploy.WithWaitPolicy(e.WaitPolicy()), deploy.WithSequencer(e.seq)}, opts...)
	d := deploy.NewDeployer(e.Artifacts, e.Backend, e.ChainID, e.Signer, e.Logger, opts...)
	return deploy.LoggingMiddleware(e.Logger)(d)
}
