// Package transport provides HTTP request/response types for the deployments domain.
package transport

import (
	"time"

	"github.com/pendergraft/contraship/internal/deployments/domain"
)

// DeploymentListResponse is the response for listing deployments.
type DeploymentListResponse struct {
	Data       []DeploymentItem `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// DeploymentItem is a deployment in a list.
type DeploymentItem struct {
	ChainID      int64  `json:"chainId"`
	Address      string `json:"address"`
	Target       string `json:"target"`
	ContractName string `json:"contractName"`
	Verified     bool   `json:"verified"`
	TxHash       string `json:"txHash,omitempty"`
}

// Pagination provides pagination metadata.
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

// DeploymentResponse is the response for getting a deployment.
type DeploymentResponse struct {
	ID              string `json:"id"`
	Target          string `json:"target"`
	FileKey         string `json:"fileKey"`
	ContractName    string `json:"contractName"`
	ChainID         int64  `json:"chainId"`
	Address         string `json:"address"`
	DeployerAddress string `json:"deployerAddress"`
	TxHash          string `json:"txHash"`
	BlockNumber     int64  `json:"blockNumber"`
	GasUsed         int64  `json:"gasUsed"`
	ConstructorArgs []any  `json:"constructorArgs"`
	Verified        bool   `json:"verified"`
	Verification    string `json:"verification,omitempty"`
	VerifiedAt      string `json:"verifiedAt,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewDeploymentItem converts a deployment to its list form.
func NewDeploymentItem(d domain.Deployment) DeploymentItem {
	return DeploymentItem{
		ChainID:      d.ChainID,
		Address:      d.Address,
		Target:       d.Target,
		ContractName: d.ContractName,
		Verified:     d.Verified(),
		TxHash:       d.TxHash,
	}
}

// NewDeploymentResponse converts a deployment to its detail form.
func NewDeploymentResponse(d *domain.Deployment) DeploymentResponse {
	resp := DeploymentResponse{
		ID:              d.ID,
		Target:          d.Target,
		FileKey:         d.FileKey,
		ContractName:    d.ContractName,
		ChainID:         d.ChainID,
		Address:         d.Address,
		DeployerAddress: d.DeployerAddress,
		TxHash:          d.TxHash,
		BlockNumber:     d.BlockNumber,
		GasUsed:         d.GasUsed,
		ConstructorArgs: d.ConstructorArgs,
		Verified:        d.Verified(),
		Verification:    d.Verification,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
	}
	if !d.VerifiedAt.IsZero() {
		resp.VerifiedAt = d.VerifiedAt.Format(time.RFC3339)
	}
	return resp
}
