package domain

import (
	"time"

	"github.com/prn-tf/inkwell/internal/schema"
)

// Role is the authorization level of a user.
type Role string

const (
	// RoleUser can comment and like.
	RoleUser Role = "USER"

	// RoleAuthor can additionally write posts.
	RoleAuthor Role = "AUTHOR"

	// RoleAdmin can manage every resource and other users.
	RoleAdmin Role = "ADMIN"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAuthor, RoleAdmin:
		return true
	}
	return false
}

// Entity and collection names.
const (
	EntityUser     = "User"
	CollectionUser = "users"
)

// User represents a registered account.
type User struct {
	Base

	// Email is unique and compared case-insensitively; it is stored lowercased.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// Handlers never serialize it; see the response types in the handler package.
	PasswordHash string `json:"passwordHash"`

	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Bio       string `json:"bio,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Role      Role   `json:"role,omitempty"`

	// IsActive defaults to true on create. Inactive users cannot authenticate.
	IsActive *bool `json:"isActive,omitempty"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// NewUser creates a User with default values.
func NewUser(email, passwordHash, firstName, lastName string) *User {
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         RoleUser,
		IsActive:     BoolPtr(true),
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive == nil || *u.IsActive
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// HasRole reports whether the user holds any of the given roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// AuthorSummary is the projection of a User brought in by joins.
type AuthorSummary struct {
	ID        ID     `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// AuthorProjection lists the User fields copied into an AuthorSummary.
var AuthorProjection = []string{"firstName", "lastName", "email", "avatar"}

// UserSchema returns the metadata of the User entity.
func UserSchema() *schema.Spec {
	return schema.New(EntityUser, CollectionUser).
		Fields(
			schema.String("email", schema.Required, schema.Trim, schema.CaseInsensitive, schema.Unique, schema.MaxLength(254)),
			schema.String("passwordHash", schema.Required),
			schema.String("firstName", schema.Required, schema.Trim, schema.MaxLength(100)),
			schema.String("lastName", schema.Required, schema.Trim, schema.MaxLength(100)),
			schema.String("bio", schema.Trim, schema.MaxLength(500)),
			schema.String("avatar", schema.Trim),
			schema.String("role", schema.Indexed, schema.Default(string(RoleUser)),
				schema.Enum(string(RoleUser), string(RoleAuthor), string(RoleAdmin))),
			schema.Bool("isActive", schema.Default(true)),
			schema.Time("lastLoginAt"),
		).
		MustBuild()
}
