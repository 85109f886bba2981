package handler

import (
	"time"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/service"
)

// UserResponse is a user without credentials.
type UserResponse struct {
	ID          domain.ID   `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Bio         string      `json:"bio,omitempty"`
	Avatar      string      `json:"avatar,omitempty"`
	Role        domain.Role `json:"role"`
	IsActive    bool        `json:"isActive"`
	LastLoginAt *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Bio:         u.Bio,
		Avatar:      u.Avatar,
		Role:        u.Role,
		IsActive:    u.CanAuthenticate(),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func toUserPage(p *query.Page[*domain.User]) query.Page[UserResponse] {
	out := query.Page[UserResponse]{Data: make([]UserResponse, 0, len(p.Data)), Pagination: p.Pagination}
	for _, u := range p.Data {
		out.Data = append(out.Data, toUserResponse(u))
	}
	return out
}

// AuthResponse is returned by login.
type AuthResponse struct {
	service.Session
	User UserResponse `json:"user"`
}

// listResponse renders a listing as a bare array or as a page.
func listResponse[T any](l query.Listing[T]) any {
	if l.Paginated() {
		return query.Page[T]{Data: l.Items, Pagination: *l.Page}
	}
	return l.Items
}

// =============================================================================
// Requests
// =============================================================================

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type updateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Bio       *string `json:"bio"`
	Avatar    *string `json:"avatar"`
}

type roleRequest struct {
	Role domain.Role `json:"role"`
}

type createCategoryRequest struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Parent      domain.ID `json:"parent"`
	SortOrder   int64     `json:"sortOrder"`
}

type updateCategoryRequest struct {
	Name        *string    `json:"name"`
	Slug        *string    `json:"slug"`
	Description *string    `json:"description"`
	Color       *string    `json:"color"`
	Parent      *domain.ID `json:"parent"`
	SortOrder   *int64     `json:"sortOrder"`
	IsActive    *bool      `json:"isActive"`
}

type createPostRequest struct {
	Title         string            `json:"title"`
	Slug          string            `json:"slug"`
	Excerpt       string            `json:"excerpt"`
	Content       string            `json:"content"`
	FeaturedImage string            `json:"featuredImage"`
	Status        domain.PostStatus `json:"status"`
	Categories    []domain.ID       `json:"categories"`
	Tags          []string          `json:"tags"`
}

type updatePostRequest struct {
	Title         *string            `json:"title"`
	Slug          *string            `json:"slug"`
	Excerpt       *string            `json:"excerpt"`
	Content       *string            `json:"content"`
	FeaturedImage *string            `json:"featuredImage"`
	Status        *domain.PostStatus `json:"status"`
	Categories    *[]domain.ID       `json:"categories"`
	Tags          *[]string          `json:"tags"`
}

type commentRequest struct {
	Content string    `json:"content"`
	Parent  domain.ID `json:"parent"`
}

type uploadRequest struct {
	Kind        string `json:"kind"`
	ContentType string `json:"contentType"`
}
