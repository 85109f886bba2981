// Package repository defines data access for Inkwell.
// A generic Base repository over a store.Driver implements the document
// lifecycle once; the domain repositories here only fix the entity type,
// register their default join and add named queries.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
)

// =============================================================================
// Generic Repository
// =============================================================================

// Repository is the lifecycle every entity shares. Reads hide soft-deleted rows
// unless query.WithDeleted is given; lookups that match nothing return a
// domain NotFound error.
type Repository[T any] interface {
	// Spec returns the entity metadata.
	Spec() *schema.Spec

	// FindOneByID retrieves an entity by ID.
	FindOneByID(ctx context.Context, id domain.ID, opts ...query.Option) (*T, error)

	// FindOne retrieves the first match of filter.
	FindOne(ctx context.Context, filter query.Filter, opts ...query.Option) (*T, error)

	// List returns matches, capped at the configured maximum.
	List(ctx context.Context, filter query.Filter, opts ...query.Option) ([]*T, error)

	// ListAll returns every match. Administrative paths only.
	ListAll(ctx context.Context, filter query.Filter, opts ...query.Option) ([]*T, error)

	// ListPaginated returns one page of matches.
	ListPaginated(ctx context.Context, filter query.Filter, p query.Pagination, opts ...query.Option) (*query.Page[*T], error)

	// FindAll returns a paginated listing when query.WithPagination is given and a capped list otherwise.
	FindAll(ctx context.Context, filter query.Filter, opts ...query.Option) (query.Listing[*T], error)

	// Count returns the number of matches.
	Count(ctx context.Context, filter query.Filter, opts ...query.Option) (int64, error)

	// Create inserts a new entity.
	Create(ctx context.Context, entity *T) (*T, error)

	// UpdateOneByID applies a patch and returns the updated entity.
	UpdateOneByID(ctx context.Context, id domain.ID, patch Patch, opts ...query.Option) (*T, error)

	// SoftDeleteOneByID marks an entity deleted. Returns whether anything changed.
	SoftDeleteOneByID(ctx context.Context, id domain.ID) (bool, error)

	// RestoreOneByID clears the deleted mark. Returns whether anything changed.
	RestoreOneByID(ctx context.Context, id domain.ID) (bool, error)

	// DeleteOneByID removes an entity permanently.
	DeleteOneByID(ctx context.Context, id domain.ID) (bool, error)
}

var _ Repository[domain.Post] = (*Base[domain.Post])(nil)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Repository[domain.User]

	// FindByEmail retrieves a user by email, case-insensitively.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmail checks if a live user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, id domain.ID, at time.Time) (*domain.User, error)

	// SetRole changes the user's role.
	SetRole(ctx context.Context, id domain.ID, role domain.Role) (*domain.User, error)

	// Activate enables the account.
	Activate(ctx context.Context, id domain.ID) (*domain.User, error)

	// Deactivate disables the account.
	Deactivate(ctx context.Context, id domain.ID) (*domain.User, error)
}

// =============================================================================
// Category Repository
// =============================================================================

// CategoryRepository defines the interface for category data access.
// The default join expands parent.
type CategoryRepository interface {
	Repository[domain.Category]

	// FindBySlug retrieves a category by slug with its parent expanded.
	FindBySlug(ctx context.Context, slug string) (*domain.Category, error)

	// FindByName retrieves a category by name.
	FindByName(ctx context.Context, name string) (*domain.Category, error)

	// FindActive returns active categories ordered by sortOrder then name.
	FindActive(ctx context.Context) ([]*domain.Category, error)

	// FindRootCategories returns active categories without a parent.
	FindRootCategories(ctx context.Context) ([]*domain.Category, error)

	// FindByParent returns the active children of parent.
	FindByParent(ctx context.Context, parent domain.ID) ([]*domain.Category, error)

	// IncrementPostCount adds one to postCount. A missing category is ignored.
	IncrementPostCount(ctx context.Context, id domain.ID) error

	// DecrementPostCount subtracts one from postCount. A missing category is ignored.
	DecrementPostCount(ctx context.Context, id domain.ID) error

	// UpdateSortOrder sets sortOrder.
	UpdateSortOrder(ctx context.Context, id domain.ID, sortOrder int64) (*domain.Category, error)

	// Activate marks the category active.
	Activate(ctx context.Context, id domain.ID) (*domain.Category, error)

	// Deactivate marks the category inactive.
	Deactivate(ctx context.Context, id domain.ID) (*domain.Category, error)
}

// =============================================================================
// Post Repository
// =============================================================================

// PostRepository defines the interface for post data access.
// The default join expands author and categories.
type PostRepository interface {
	Repository[domain.Post]

	// FindBySlug retrieves a post by slug with joins.
	FindBySlug(ctx context.Context, slug string) (*domain.Post, error)

	// FindPublished returns published posts, newest publication first.
	FindPublished(ctx context.Context) ([]*domain.Post, error)

	// FindByAuthor returns the author's posts, newest first.
	// Optional scope filters are conjoined, e.g. to hide drafts.
	FindByAuthor(ctx context.Context, author domain.ID, scope ...query.Filter) ([]*domain.Post, error)

	// FindByCategory returns posts filed under category.
	FindByCategory(ctx context.Context, category domain.ID, scope ...query.Filter) ([]*domain.Post, error)

	// FindByTag returns posts carrying tag.
	FindByTag(ctx context.Context, tag string, scope ...query.Filter) ([]*domain.Post, error)

	// IncrementViewCount atomically adds one view.
	IncrementViewCount(ctx context.Context, id domain.ID) (*domain.Post, error)

	// IncrementLikeCount atomically adds one like.
	IncrementLikeCount(ctx context.Context, id domain.ID) (*domain.Post, error)

	// DecrementLikeCount atomically removes one like.
	DecrementLikeCount(ctx context.Context, id domain.ID) (*domain.Post, error)

	// IncrementCommentCount atomically adds one comment.
	IncrementCommentCount(ctx context.Context, id domain.ID) (*domain.Post, error)

	// DecrementCommentCount atomically removes one comment.
	DecrementCommentCount(ctx context.Context, id domain.ID) (*domain.Post, error)

	// Publish sets status PUBLISHED and stamps publishedAt.
	Publish(ctx context.Context, id domain.ID) (*domain.Post, error)

	// Unpublish sets status DRAFT and clears publishedAt.
	Unpublish(ctx context.Context, id domain.ID) (*domain.Post, error)

	// Archive sets status ARCHIVED.
	Archive(ctx context.Context, id domain.ID) (*domain.Post, error)
}

// =============================================================================
// Comment Repository
// =============================================================================

// CommentRepository defines the interface for comment data access.
// The default join expands author.
type CommentRepository interface {
	Repository[domain.Comment]

	// FindByPost returns the top-level comments of a post, oldest first.
	FindByPost(ctx context.Context, post domain.ID, p query.Pagination) (*query.Page[*domain.Comment], error)

	// FindReplies returns the replies to a comment, oldest first.
	FindReplies(ctx context.Context, parent domain.ID) ([]*domain.Comment, error)

	// CountByPost returns the number of live comments on a post.
	CountByPost(ctx context.Context, post domain.ID) (int64, error)
}

// =============================================================================
// Like Repository
// =============================================================================

// LikeRepository defines the interface for like data access.
// The default join expands user.
type LikeRepository interface {
	Repository[domain.Like]

	// FindByPostAndUser retrieves the like of user on post. Pass query.WithDeleted
	// to find a like that was withdrawn.
	FindByPostAndUser(ctx context.Context, post, user domain.ID, opts ...query.Option) (*domain.Like, error)

	// FindByPost returns the likes of a post with the liking users expanded.
	FindByPost(ctx context.Context, post domain.ID, p query.Pagination) (*query.Page[*domain.Like], error)

	// CountByPost returns the number of live likes on a post.
	CountByPost(ctx context.Context, post domain.ID) (int64, error)

	// FindByUser returns the likes a user gave, newest first.
	FindByUser(ctx context.Context, user domain.ID, p query.Pagination) (*query.Page[*domain.Like], error)
}
