package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/artpar/usagemeter/ports"
)

// StorageStatusClient fetches the opaque storage-status payload from the
// storage service on behalf of the caller's token.
//
// API Contract:
//
//	GET /storage-status
//	Authorization: Bearer {token}
//	Response: opaque JSON, passed through unmodified
type StorageStatusClient struct {
	client *Client
}

// NewStorageStatusClient creates a storage-status client.
func NewStorageStatusClient(client *Client) *StorageStatusClient {
	return &StorageStatusClient{client: client}
}

// Status returns the storage service's status payload without
// interpreting it.
func (c *StorageStatusClient) Status(ctx context.Context, token string) (json.RawMessage, error) {
	var payload json.RawMessage
	if err := c.client.get(ctx, "/storage-status", token, &payload); err != nil {
		return nil, fmt.Errorf("storage status: %w", err)
	}
	return payload, nil
}

// Ensure interface compliance.
var _ ports.StorageStatusClient = (*StorageStatusClient)(nil)
