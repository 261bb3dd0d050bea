package services

import (
	"context"
	"errors"
	"strings"

	"github.com/zerno-shop/api/internal/repositories"
)

var (
	// ErrUserInvalidInput indicates the caller supplied invalid profile parameters.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the user record does not exist.
	ErrUserNotFound = errors.New("user: not found")
	// ErrDuplicateEmail indicates the requested email already belongs to another account.
	ErrDuplicateEmail = errors.New("user: email already taken")
	// ErrUserUnavailable indicates the backing store is unreachable.
	ErrUserUnavailable = errors.New("user: unavailable")
)

// UserServiceDeps wires the dependencies required by the user service.
type UserServiceDeps struct {
	Users  repositories.UserRepository
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	users  repositories.UserRepository
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewUserService constructs a UserService validating required dependencies.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &userService{users: deps.Users, logger: logger}, nil
}

// GetProfile loads the user's profile with cart and order links.
func (s *userService) GetProfile(ctx context.Context, userID int64) (UserProfile, error) {
	if userID <= 0 {
		return UserProfile{}, ErrUserInvalidInput
	}
	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserProfile{}, translateUserError(err)
	}
	return profile, nil
}

// UpdateProfile replaces the user's profile fields and stored cart. Changing the
// email to one owned by a different account is rejected before any write.
func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	if cmd.UserID <= 0 {
		return UserProfile{}, ErrUserInvalidInput
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" {
		return UserProfile{}, ErrUserInvalidInput
	}
	for _, item := range cmd.Cart {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return UserProfile{}, ErrUserInvalidInput
		}
	}

	current, err := s.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return UserProfile{}, translateUserError(err)
	}

	if email != current.Email {
		other, found, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return UserProfile{}, translateUserError(err)
		}
		if found && other.ID != cmd.UserID {
			return UserProfile{}, ErrDuplicateEmail
		}
	}

	current.Email = email
	current.Name = strings.TrimSpace(cmd.Name)
	current.Surname = strings.TrimSpace(cmd.Surname)
	current.Phone = strings.TrimSpace(cmd.Phone)
	current.Address = strings.TrimSpace(cmd.Address)
	current.Cart = append([]CartItem(nil), cmd.Cart...)

	updated, err := s.users.Update(ctx, current)
	if err != nil {
		return UserProfile{}, translateUserError(err)
	}

	s.logger(ctx, "profile_updated", map[string]any{
		"user_id":    updated.ID,
		"cart_lines": len(updated.Cart),
	})
	return updated, nil
}

func translateUserError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrUserNotFound
		case repoErr.IsConflict():
			return ErrDuplicateEmail
		case repoErr.IsUnavailable():
			return ErrUserUnavailable
		}
	}
	return err
}
