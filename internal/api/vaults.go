package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/one-capital/pricefeed/internal/model"
)

// VaultRequest is the payload for creating or updating a vault.
type VaultRequest struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
}

// ListVaults fetches the caller's vaults.
func (c *Client) ListVaults(ctx context.Context) ([]model.Vault, error) {
	var vaults []model.Vault
	if err := c.get(ctx, "/api/vaults", nil, &vaults); err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	return vaults, nil
}

// GetVault fetches a single vault with its allocations.
func (c *Client) GetVault(ctx context.Context, id int64) (*model.Vault, error) {
	var vault model.Vault
	if err := c.get(ctx, fmt.Sprintf("/api/vaults/%d", id), nil, &vault); err != nil {
		return nil, fmt.Errorf("get vault %d: %w", id, err)
	}
	return &vault, nil
}

// CreateVault creates a new vault.
func (c *Client) CreateVault(ctx context.Context, req VaultRequest) (*model.Vault, error) {
	var vault model.Vault
	if err := c.do(ctx, http.MethodPost, "/api/vaults", req, &vault); err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	return &vault, nil
}

// UpdateVault updates an existing vault.
func (c *Client) UpdateVault(ctx context.Context, id int64, req VaultRequest) (*model.Vault, error) {
	var vault model.Vault
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/vaults/%d", id), req, &vault); err != nil {
		return nil, fmt.Errorf("update vault %d: %w", id, err)
	}
	return &vault, nil
}

// DeleteVault deletes a vault.
func (c *Client) DeleteVault(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/vaults/%d", id), nil, nil); err != nil {
		return fmt.Errorf("delete vault %d: %w", id, err)
	}
	return nil
}
