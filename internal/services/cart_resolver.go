package services

import (
	"errors"
	"fmt"

	domain "github.com/zerno-shop/api/internal/domain"
)

var (
	// ErrCartEmpty indicates the stored cart has no resolvable lines.
	ErrCartEmpty = errors.New("cart: empty")
	// ErrProductNotFound indicates a cart line references a product missing from the catalogue.
	ErrProductNotFound = errors.New("cart: product not found")
	// ErrVariantNotFound indicates a cart line requests a variant the product does not offer.
	ErrVariantNotFound = errors.New("cart: variant not found")
	// ErrInvalidQuantity indicates a cart line carries a non-positive quantity.
	ErrInvalidQuantity = errors.New("cart: invalid quantity")
)

// ResolvedCart is a cart priced entirely from the catalogue snapshot. The
// parallel Names, Prices, and Counts slices preserve line order for the
// gateway's positional signature.
type ResolvedCart struct {
	Lines  []domain.OrderLineItem
	Names  []string
	Prices []int64
	Counts []int
	Total  int64
}

// ResolveCart prices every cart line against the catalogue snapshot. Whatever
// prices the client may have stored alongside the cart are ignored.
func ResolveCart(items []domain.CartItem, catalog domain.Catalog) (ResolvedCart, error) {
	if len(items) == 0 {
		return ResolvedCart{}, ErrCartEmpty
	}

	resolved := ResolvedCart{
		Lines:  make([]domain.OrderLineItem, 0, len(items)),
		Names:  make([]string, 0, len(items)),
		Prices: make([]int64, 0, len(items)),
		Counts: make([]int, 0, len(items)),
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return ResolvedCart{}, fmt.Errorf("%w: product %d", ErrInvalidQuantity, item.ProductID)
		}
		product, ok := catalog.FindProduct(item.ProductID)
		if !ok {
			return ResolvedCart{}, fmt.Errorf("%w: product %d", ErrProductNotFound, item.ProductID)
		}
		tier, ok := product.FindPrice(item.Variant)
		if !ok {
			return ResolvedCart{}, fmt.Errorf("%w: product %d variant %q", ErrVariantNotFound, item.ProductID, item.Variant)
		}

		name := product.Name
		if item.Variant != "" {
			name = fmt.Sprintf("%s (%s)", product.Name, item.Variant)
		}
		line := domain.OrderLineItem{
			ProductID: product.ID,
			Name:      name,
			Variant:   item.Variant,
			UnitPrice: tier.Amount,
			Quantity:  item.Quantity,
		}

		resolved.Lines = append(resolved.Lines, line)
		resolved.Names = append(resolved.Names, name)
		resolved.Prices = append(resolved.Prices, tier.Amount)
		resolved.Counts = append(resolved.Counts, item.Quantity)
		resolved.Total += line.Subtotal()
	}

	return resolved, nil
}
