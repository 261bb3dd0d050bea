package cms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	domain "github.com/zerno-shop/api/internal/domain"
)

// UserRepository reads and updates the CMS user records. The users endpoint is
// owned by the authentication plugin and returns flat JSON, unlike the
// data/attributes envelope of content entities.
type UserRepository struct {
	client *Client
}

// NewUserRepository constructs a UserRepository over the provided client.
func NewUserRepository(client *Client) (*UserRepository, error) {
	if client == nil {
		return nil, errors.New("cms: client is required")
	}
	return &UserRepository{client: client}, nil
}

type userRecord struct {
	ID      int64          `json:"id"`
	Email   string         `json:"email"`
	Name    string         `json:"name"`
	Surname string         `json:"surname"`
	Phone   string         `json:"phone"`
	Address string         `json:"address"`
	Cart    []userCartItem `json:"cart"`
	Orders  []userOrderRef `json:"orders"`
}

type userCartItem struct {
	ID      int64  `json:"id"`
	Variant string `json:"variant"`
	Count   int    `json:"count"`
}

type userOrderRef struct {
	ID int64 `json:"id"`
}

type userWrite struct {
	Email   string         `json:"email"`
	Name    string         `json:"name"`
	Surname string         `json:"surname"`
	Phone   string         `json:"phone"`
	Address string         `json:"address"`
	Cart    []userCartItem `json:"cart"`
	Orders  []int64        `json:"orders"`
}

// FindByID loads a user with orders populated.
func (r *UserRepository) FindByID(ctx context.Context, userID int64) (domain.UserProfile, error) {
	var record userRecord
	path := fmt.Sprintf("/api/users/%d?populate=orders", userID)
	if err := r.client.get(ctx, "users.find", path, &record); err != nil {
		return domain.UserProfile{}, err
	}
	return profileFromRecord(record), nil
}

// FindByEmail looks a user up by their unique email key.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.UserProfile, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.UserProfile{}, false, nil
	}
	var records []userRecord
	path := "/api/users?filters[email][$eq]=" + url.QueryEscape(email)
	if err := r.client.get(ctx, "users.find_by_email", path, &records); err != nil {
		return domain.UserProfile{}, false, err
	}
	if len(records) == 0 {
		return domain.UserProfile{}, false, nil
	}
	return profileFromRecord(records[0]), true, nil
}

// Update writes the profile back to the CMS. The CMS enforces nothing about the
// order list shape beyond relation ids, so the write sends ids only.
func (r *UserRepository) Update(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if profile.ID == 0 {
		return domain.UserProfile{}, &Error{Op: "users.update", StatusCode: http.StatusNotFound}
	}

	cart := make([]userCartItem, 0, len(profile.Cart))
	for _, item := range profile.Cart {
		cart = append(cart, userCartItem{
			ID:      item.ProductID,
			Variant: item.Variant,
			Count:   item.Quantity,
		})
	}

	body := userWrite{
		Email:   strings.ToLower(strings.TrimSpace(profile.Email)),
		Name:    profile.Name,
		Surname: profile.Surname,
		Phone:   profile.Phone,
		Address: profile.Address,
		Cart:    cart,
		Orders:  append([]int64{}, profile.OrderIDs...),
	}

	var record userRecord
	path := fmt.Sprintf("/api/users/%d", profile.ID)
	if err := r.client.put(ctx, "users.update", path, body, &record); err != nil {
		return domain.UserProfile{}, err
	}

	updated := profileFromRecord(record)
	// The update response does not populate relations; keep the ids we sent.
	if len(updated.OrderIDs) == 0 {
		updated.OrderIDs = append([]int64{}, profile.OrderIDs...)
	}
	return updated, nil
}

func profileFromRecord(record userRecord) domain.UserProfile {
	cart := make([]domain.CartItem, 0, len(record.Cart))
	for _, item := range record.Cart {
		cart = append(cart, domain.CartItem{
			ProductID: item.ID,
			Variant:   item.Variant,
			Quantity:  item.Count,
		})
	}
	orderIDs := make([]int64, 0, len(record.Orders))
	for _, ref := range record.Orders {
		orderIDs = append(orderIDs, ref.ID)
	}
	return domain.UserProfile{
		ID:       record.ID,
		Email:    strings.ToLower(strings.TrimSpace(record.Email)),
		Name:     record.Name,
		Surname:  record.Surname,
		Phone:    record.Phone,
		Address:  record.Address,
		Cart:     cart,
		OrderIDs: orderIDs,
	}
}
