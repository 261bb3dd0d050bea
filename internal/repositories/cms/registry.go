package cms

import (
	"context"

	"github.com/zerno-shop/api/internal/repositories"
)

// Registry bundles the CMS-backed repositories behind the repositories.Registry contract.
type Registry struct {
	client  *Client
	catalog *CatalogRepository
	orders  *OrderRepository
	users   *UserRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the client and every repository in one step.
func NewRegistry(cfg Config) (*Registry, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(client)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(client)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(client)
	if err != nil {
		return nil, err
	}
	return &Registry{
		client:  client,
		catalog: catalog,
		orders:  orders,
		users:   users,
	}, nil
}

// Close releases the underlying client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close(ctx)
}

// Catalog returns the catalogue repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }
