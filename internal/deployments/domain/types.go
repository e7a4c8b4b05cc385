package domain

import (
	"time"
)

// Deployment represents a recorded deployment.
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
	ConstructorArgs []any
	Verification    string
	VerifiedAt      time.Time
	CreatedAt       time.Time
}

// Verified reports whether the deployed code matched its artifact
func (d *Deployment) Verified() bool {
	return d.Verification == "full" || d.Verification == "partial"
}

// RecordRequest is the request to record a new deployment.
type RecordRequest struct {
	Target          string
	FileKey         string
	Contract        string
	ChainID         int64
	Address         string
	DeployerAddress string
	TxHash          string
	BlockNumber     int64
	GasUsed         int64
	ConstructorArgs []any
}

// ListFilter contains filter options for listing deployments.
type ListFilter struct {
	Target   string
	ChainID  int64
	Verified *bool
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// ListResult contains paginated list results.
type ListResult struct {
	Deployments []Deployment
	HasMore     bool
	NextCursor  string
}
