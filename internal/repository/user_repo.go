package repository

import (
	"context"
	"time"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
)

// userRepository implements UserRepository.
type userRepository struct {
	*Base[domain.User]
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(b *Backend) UserRepository {
	return &userRepository{
		Base: NewBase[domain.User](b, Definition{
			Entity:       domain.EntityUser,
			SearchFields: []string{"firstName", "lastName", "email"},
			SortFields:   []string{"email", "firstName", "lastName", "role", "createdAt", "lastLoginAt"},
		}),
	}
}

// FindByEmail retrieves a user by email. The schema lowercases the operand.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.FindOne(ctx, query.Eq{Field: "email", Value: email})
}

// ExistsByEmail checks if a live user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := r.Count(ctx, query.Eq{Field: "email", Value: email})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateLastLogin records a successful login.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id domain.ID, at time.Time) (*domain.User, error) {
	return r.UpdateOneByID(ctx, id, SetFields{"lastLoginAt": at})
}

// SetRole changes the user's role.
func (r *userRepository) SetRole(ctx context.Context, id domain.ID, role domain.Role) (*domain.User, error) {
	return r.UpdateOneByID(ctx, id, SetFields{"role": string(role)})
}

// Activate enables the account.
func (r *userRepository) Activate(ctx context.Context, id domain.ID) (*domain.User, error) {
	return r.UpdateOneByID(ctx, id, SetFields{"isActive": true})
}

// Deactivate disables the account.
func (r *userRepository) Deactivate(ctx context.Context, id domain.ID) (*domain.User, error) {
	return r.UpdateOneByID(ctx, id, SetFields{"isActive": false})
}

var _ UserRepository = (*userRepository)(nil)
