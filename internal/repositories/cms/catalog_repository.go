package cms

import (
	"context"
	"errors"

	domain "github.com/zerno-shop/api/internal/domain"
)

// CatalogRepository reads the product catalogue from the CMS content API.
type CatalogRepository struct {
	client *Client
}

// NewCatalogRepository constructs a CatalogRepository over the provided client.
func NewCatalogRepository(client *Client) (*CatalogRepository, error) {
	if client == nil {
		return nil, errors.New("cms: client is required")
	}
	return &CatalogRepository{client: client}, nil
}

type productEnvelope struct {
	Data []productEntry `json:"data"`
}

type productEntry struct {
	ID         int64             `json:"id"`
	Attributes productAttributes `json:"attributes"`
}

type productAttributes struct {
	Name   string       `json:"name"`
	Prices []priceEntry `json:"prices"`
}

type priceEntry struct {
	Variant string `json:"variant"`
	Amount  int64  `json:"amount"`
}

// Snapshot fetches the full catalogue with price tiers populated.
func (r *CatalogRepository) Snapshot(ctx context.Context) (domain.Catalog, error) {
	var envelope productEnvelope
	if err := r.client.get(ctx, "catalog.snapshot", "/api/products?populate=prices&pagination[limit]=-1", &envelope); err != nil {
		return domain.Catalog{}, err
	}

	products := make([]domain.Product, 0, len(envelope.Data))
	for _, entry := range envelope.Data {
		prices := make([]domain.PriceTier, 0, len(entry.Attributes.Prices))
		for _, price := range entry.Attributes.Prices {
			prices = append(prices, domain.PriceTier{
				Variant: price.Variant,
				Amount:  price.Amount,
			})
		}
		products = append(products, domain.Product{
			ID:     entry.ID,
			Name:   entry.Attributes.Name,
			Prices: prices,
		})
	}
	return domain.Catalog{Products: products}, nil
}
