package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Builds
	CREATE TABLE IF NOT EXISTS builds (
		id UUID PRIMARY KEY,
		target TEXT NOT NULL,
		compiler_version TEXT NOT NULL,
		artifact_hash TEXT NOT NULL,
		contract_count INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	-- Deployments
	CREATE TABLE IF NOT EXISTS deployments (
		id UUID PRIMARY KEY,
		target TEXT NOT NULL,
		file_key TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		address TEXT NOT NULL,
		deployer_address TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		block_number BIGINT NOT NULL DEFAULT 0,
		gas_used BIGINT NOT NULL DEFAULT 0,
		constructor_args JSONB NOT NULL DEFAULT '[]',
		verification TEXT NOT NULL DEFAULT '',
		verified_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE(chain_id, address)
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_builds_target ON builds(target, created_at);
	CREATE INDEX IF NOT EXISTS idx_deployments_target ON deployments(target);
	CREATE INDEX IF NOT EXISTS idx_deployments_created ON deployments(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

func parseCursor(cursor string) (time.Time, error) {
	t, err := time.Parse(timeFormat, cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
	}
	return t, nil
}

// RecordBuild records a committed build
func (s *PostgresStore) RecordBuild(ctx context.Context, b *Build) error {
	if b.ID == "" {
		b.ID = generateID()
	}
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	b.CreatedAt = createdAt.Format(timeFormat)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, target, compiler_version, artifact_hash, contract_count, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		b.ID, b.Target, b.CompilerVersion, b.ArtifactHash, b.ContractCount, createdAt,
	)
	return err
}

func scanPostgresBuild(row interface{ Scan(...any) error }) (*Build, error) {
	var b Build
	var createdAt time.Time
	if err := row.Scan(&b.ID, &b.Target, &b.CompilerVersion, &b.ArtifactHash, &b.ContractCount, &createdAt); err != nil {
		return nil, err
	}
	b.CreatedAt = createdAt.UTC().Format(timeFormat)
	return &b, nil
}

// LatestBuild returns the most recent build of target
func (s *PostgresStore) LatestBuild(ctx context.Context, target string) (*Build, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, target, compiler_version, artifact_hash, contract_count, created_at FROM builds WHERE target = $1 ORDER BY created_at DESC LIMIT 1",
		target,
	)
	b, err := scanPostgresBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// ListBuilds lists builds newest first, optionally for one target
func (s *PostgresStore) ListBuilds(ctx context.Context, target string, pagination PaginationParams) (*PaginatedResult[Build], error) {
	c := &conditions{placeholder: dollar}
	if target != "" {
		c.add("target = ?", target)
	}
	if pagination.Cursor != "" {
		cursor, err := parseCursor(pagination.Cursor)
		if err != nil {
			return nil, err
		}
		c.add("created_at < ?", cursor)
	}
	limit := limitOf(pagination)
	query := "SELECT id, target, compiler_version, artifact_hash, contract_count, created_at FROM builds" +
		c.String() + " ORDER BY created_at DESC LIMIT " + c.next(limit+1)

	rows, err := s.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanPostgresBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page(builds, limit, func(b Build) string { return b.CreatedAt }), nil
}

// RecordDeployment records a deployment, replacing any earlier record for the same address
func (s *PostgresStore) RecordDeployment(ctx context.Context, d *Deployment) error {
	if d.ID == "" {
		d.ID = generateID()
	}
	if d.ConstructorArgs == "" {
		d.ConstructorArgs = "[]"
	}
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	d.CreatedAt = createdAt.Format(timeFormat)

	query := `
		INSERT INTO deployments (id, target, file_key, contract_name, chain_id, address, deployer_address, tx_hash, block_number, gas_used, constructor_args, verification, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (chain_id, address) DO UPDATE SET
			id = EXCLUDED.id,
			target = EXCLUDED.target,
			file_key = EXCLUDED.file_key,
			contract_name = EXCLUDED.contract_name,
			deployer_address = EXCLUDED.deployer_address,
			tx_hash = EXCLUDED.tx_hash,
			block_number = EXCLUDED.block_number,
			gas_used = EXCLUDED.gas_used,
			constructor_args = EXCLUDED.constructor_args,
			verification = EXCLUDED.verification,
			verified_at = NULL,
			created_at = EXCLUDED.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Target, d.FileKey, d.ContractName, d.ChainID, d.Address, d.DeployerAddress,
		d.TxHash, d.BlockNumber, d.GasUsed, d.ConstructorArgs, d.Verification, createdAt,
	)
	return err
}

const postgresDeploymentColumns = "id, target, file_key, contract_name, chain_id, address, deployer_address, tx_hash, block_number, gas_used, constructor_args::text, verification, verified_at, created_at"

func scanPostgresDeployment(row interface{ Scan(...any) error }) (*Deployment, error) {
	var d Deployment
	var verifiedAt sql.NullTime
	var createdAt time.Time
	if err := row.Scan(
		&d.ID, &d.Target, &d.FileKey, &d.ContractName, &d.ChainID, &d.Address, &d.DeployerAddress,
		&d.TxHash, &d.BlockNumber, &d.GasUsed, &d.ConstructorArgs, &d.Verification, &verifiedAt, &createdAt,
	); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		d.VerifiedAt = verifiedAt.Time.UTC().Format(timeFormat)
	}
	d.CreatedAt = createdAt.UTC().Format(timeFormat)
	return &d, nil
}

// GetDeployment retrieves a deployment
func (s *PostgresStore) GetDeployment(ctx context.Context, chainID int64, address string) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+postgresDeploymentColumns+" FROM deployments WHERE chain_id = $1 AND address = $2",
		chainID, address,
	)
	d, err := scanPostgresDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ListDeployments lists deployments newest first
func (s *PostgresStore) ListDeployments(ctx context.Context, filter DeploymentFilter, pagination PaginationParams) (*PaginatedResult[Deployment], error) {
	c := deploymentConditions(filter, dollar)
	if pagination.Cursor != "" {
		cursor, err := parseCursor(pagination.Cursor)
		if err != nil {
			return nil, err
		}
		c.add("created_at < ?", cursor)
	}
	limit := limitOf(pagination)
	query := "SELECT " + postgresDeploymentColumns + " FROM deployments" +
		c.String() + " ORDER BY created_at DESC LIMIT " + c.next(limit+1)

	rows, err := s.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []Deployment
	for rows.Next() {
		d, err := scanPostgresDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page(deployments, limit, func(d Deployment) string { return d.CreatedAt }), nil
}

// UpdateVerificationStatus updates a deployment's verification status
func (s *PostgresStore) UpdateVerificationStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE deployments SET verification = $1, verified_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
