package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Builds
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		compiler_version TEXT NOT NULL,
		artifact_hash TEXT NOT NULL,
		contract_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Deployments
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		file_key TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		deployer_address TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		block_number INTEGER NOT NULL DEFAULT 0,
		gas_used INTEGER NOT NULL DEFAULT 0,
		constructor_args TEXT NOT NULL DEFAULT '[]',
		verification TEXT NOT NULL DEFAULT '',
		verified_at TEXT,
		created_at TEXT NOT NULL,
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

// RecordBuild records a committed build
func (s *SQLiteStore) RecordBuild(ctx context.Context, b *Build) error {
	if b.ID == "" {
		b.ID = generateID()
	}
	b.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, target, compiler_version, artifact_hash, contract_count, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		b.ID, b.Target, b.CompilerVersion, b.ArtifactHash, b.ContractCount, b.CreatedAt,
	)
	return err
}

// LatestBuild returns the most recent build of target
func (s *SQLiteStore) LatestBuild(ctx context.Context, target string) (*Build, error) {
	var b Build
	err := s.db.QueryRowContext(ctx,
		"SELECT id, target, compiler_version, artifact_hash, contract_count, created_at FROM builds WHERE target = ? ORDER BY created_at DESC LIMIT 1",
		target,
	).Scan(&b.ID, &b.Target, &b.CompilerVersion, &b.ArtifactHash, &b.ContractCount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBuilds lists builds newest first, optionally for one target
func (s *SQLiteStore) ListBuilds(ctx context.Context, target string, pagination PaginationParams) (*PaginatedResult[Build], error) {
	c := &conditions{placeholder: questionMark}
	if target != "" {
		c.add("target = ?", target)
	}
	if pagination.Cursor != "" {
		c.add("created_at < ?", pagination.Cursor)
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
		var b Build
		if err := rows.Scan(&b.ID, &b.Target, &b.CompilerVersion, &b.ArtifactHash, &b.ContractCount, &b.CreatedAt); err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page(builds, limit, func(b Build) string { return b.CreatedAt }), nil
}

// RecordDeployment records a deployment. A deployment to an address already
// recorded on the chain replaces it, which happens when a dev chain is reset.
func (s *SQLiteStore) RecordDeployment(ctx context.Context, d *Deployment) error {
	if d.ID == "" {
		d.ID = generateID()
	}
	if d.ConstructorArgs == "" {
		d.ConstructorArgs = "[]"
	}
	d.CreatedAt = now()

	query := `
		INSERT INTO deployments (id, target, file_key, contract_name, chain_id, address, deployer_address, tx_hash, block_number, gas_used, constructor_args, verification, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, address) DO UPDATE SET
			id = excluded.id,
			target = excluded.target,
			file_key = excluded.file_key,
			contract_name = excluded.contract_name,
			deployer_address = excluded.deployer_address,
			tx_hash = excluded.tx_hash,
			block_number = excluded.block_number,
			gas_used = excluded.gas_used,
			constructor_args = excluded.constructor_args,
			verification = excluded.verification,
			verified_at = NULL,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Target, d.FileKey, d.ContractName, d.ChainID, d.Address, d.DeployerAddress,
		d.TxHash, d.BlockNumber, d.GasUsed, d.ConstructorArgs, d.Verification, d.CreatedAt,
	)
	return err
}

const sqliteDeploymentColumns = "id, target, file_key, contract_name, chain_id, address, deployer_address, tx_hash, block_number, gas_used, constructor_args, verification, verified_at, created_at"

func scanSQLiteDeployment(row interface{ Scan(...any) error }) (*Deployment, error) {
	var d Deployment
	var verifiedAt sql.NullString
	if err := row.Scan(
		&d.ID, &d.Target, &d.FileKey, &d.ContractName, &d.ChainID, &d.Address, &d.DeployerAddress,
		&d.TxHash, &d.BlockNumber, &d.GasUsed, &d.ConstructorArgs, &d.Verification, &verifiedAt, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		d.VerifiedAt = verifiedAt.String
	}
	return &d, nil
}

// GetDeployment retrieves a deployment
func (s *SQLiteStore) GetDeployment(ctx context.Context, chainID int64, address string) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteDeploymentColumns+" FROM deployments WHERE chain_id = ? AND address = ?",
		chainID, address,
	)
	d, err := scanSQLiteDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ListDeployments lists deployments newest first
func (s *SQLiteStore) ListDeployments(ctx context.Context, filter DeploymentFilter, pagination PaginationParams) (*PaginatedResult[Deployment], error) {
	c := deploymentConditions(filter, questionMark)
	if pagination.Cursor != "" {
		c.add("created_at < ?", pagination.Cursor)
	}
	limit := limitOf(pagination)
	query := "SELECT " + sqliteDeploymentColumns + " FROM deployments" +
		c.String() + " ORDER BY created_at DESC LIMIT " + c.next(limit+1)

	rows, err := s.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []Deployment
	for rows.Next() {
		d, err := scanSQLiteDeployment(rows)
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
func (s *SQLiteStore) UpdateVerificationStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE deployments SET verification = ?, verified_at = ? WHERE id = ?", status, now(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
