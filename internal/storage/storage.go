package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/contraship/internal/config"
)

// BuildStore records successful builds
type BuildStore interface {
	RecordBuild(ctx context.Context, b *Build) error
	LatestBuild(ctx context.Context, target string) (*Build, error)
	ListBuilds(ctx context.Context, target string, pagination PaginationParams) (*PaginatedResult[Build], error)
}

// DeploymentStore records deployments
type DeploymentStore interface {
	RecordDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, chainID int64, address string) (*Deployment, error)
	ListDeployments(ctx context.Context, filter DeploymentFilter, pagination PaginationParams) (*PaginatedResult[Deployment], error)
	UpdateVerificationStatus(ctx context.Context, id, status string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	BuildStore
	DeploymentStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Build is one committed compiled.json
type Build struct {
	ID              string
	Target          string
	CompilerVersion string
	ArtifactHash    string
	ContractCount   int
	CreatedAt       string
}

// Deployment represents a recorded deployment
type Deployment struct {
	ID              string
	Target          string
	FileKey         string
	ContractName    string
	ChainID         int64
	Address         string
	DeployerAddress string
	TxHash          string
	BlockNumber     int64
	GasUsed         int64
	ConstructorArgs string // JSON array
	Verification    string // "", "full", "partial" or "none"
	VerifiedAt      string
	CreatedAt       string
}

// DeploymentFilter contains filter options for listing deployments
type DeploymentFilter struct {
	Target   string
	ChainID  int64
	Verified *bool
}

// PaginationParams contains pagination options.
// Cursor is the CreatedAt of the last row of the previous page.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration.
// It returns ErrDisabled when storage type is "none".
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, ErrDisabled
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
