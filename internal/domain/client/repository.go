package client

import (
	"context"

	"autoerp/internal/core/id"
)

// Repository persists clients.
type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, clientID id.ID) (*Client, error)
	GetByTelephone(ctx context.Context, telephone string) (*Client, error)
	Update(ctx context.Context, c *Client) error
	ExistsByTelephone(ctx context.Context, telephone string, exclude *id.ID) (bool, error)
	List(ctx context.Context, f Filter) ([]Client, int64, error)
}
