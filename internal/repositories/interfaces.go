package repositories

import (
	"context"

	domain "github.com/zerno-shop/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Orders() OrderRepository
	Users() UserRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository reads the product catalogue owned by the CMS.
type CatalogRepository interface {
	// Snapshot returns the full catalogue as of now. Cart resolution always works
	// against one snapshot so prices cannot change mid-checkout.
	Snapshot(ctx context.Context) (domain.Catalog, error)
}

// OrderRepository persists orders through the CMS entity service. The CMS assigns
// ids on insert; consistency of the store is its concern, not ours.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID int64) (domain.Order, error)
	MarkPaid(ctx context.Context, orderID int64) error
	Delete(ctx context.Context, orderID int64) error
}

// UserRepository reads and updates the CMS user records this API extends.
type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (domain.UserProfile, error)
	FindByEmail(ctx context.Context, email string) (domain.UserProfile, bool, error)
	Update(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
}
