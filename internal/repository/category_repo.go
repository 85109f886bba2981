package repository

import (
	"context"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
)

// categoryRepository implements CategoryRepository.
type categoryRepository struct {
	*Base[domain.Category]
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(b *Backend) CategoryRepository {
	return &categoryRepository{
		Base: NewBase[domain.Category](b, Definition{
			Entity: domain.EntityCategory,
			DefaultJoin: []query.Populate{
				{Path: "parent", Entity: domain.EntityCategory, Select: domain.CategoryProjection},
			},
			SearchFields:     []string{"name", "description", "slug"},
			SortFields:       []string{"name", "slug", "sortOrder", "postCount", "createdAt"},
			DefaultSortField: "sortOrder",
		}),
	}
}

// treeOrder is the order of category listings.
var treeOrder = query.WithOrder(query.OrderBy("sortOrder"), query.OrderBy("name"))

// FindBySlug retrieves a category by slug with its parent expanded.
func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return r.FindOne(ctx, query.Eq{Field: "slug", Value: slug}, query.WithJoin())
}

// FindByName retrieves a category by name.
func (r *categoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	return r.FindOne(ctx, query.Eq{Field: "name", Value: name})
}

// FindActive returns active categories ordered by sortOrder then name.
func (r *categoryRepository) FindActive(ctx context.Context) ([]*domain.Category, error) {
	return r.List(ctx, query.Eq{Field: "isActive", Value: true}, query.WithJoin(), treeOrder)
}

// FindRootCategories returns active categories without a parent.
func (r *categoryRepository) FindRootCategories(ctx context.Context) ([]*domain.Category, error) {
	filter := query.All(
		query.Exists{Field: "parent", Present: false},
		query.Eq{Field: "isActive", Value: true},
	)
	return r.List(ctx, filter, treeOrder)
}

// FindByParent returns the active children of parent.
func (r *categoryRepository) FindByParent(ctx context.Context, parent domain.ID) ([]*domain.Category, error) {
	filter := query.All(
		query.Eq{Field: "parent", Value: string(parent)},
		query.Eq{Field: "isActive", Value: true},
	)
	return r.List(ctx, filter, treeOrder)
}

// IncrementPostCount adds one to postCount. postCount is best effort, so a
// missing category is ignored.
func (r *categoryRepository) IncrementPostCount(ctx context.Context, id domain.ID) error {
	return r.adjustPostCount(ctx, id, 1)
}

// DecrementPostCount subtracts one from postCount. A missing category is ignored.
func (r *categoryRepository) DecrementPostCount(ctx context.Context, id domain.ID) error {
	return r.adjustPostCount(ctx, id, -1)
}

func (r *categoryRepository) adjustPostCount(ctx context.Context, id domain.ID, delta int64) error {
	_, err := r.UpdateOneByID(ctx, id, IncCounters{"postCount": delta})
	if err != nil && isNoDocument(err) {
		r.logger.Warn().Str("category", string(id)).Int64("delta", delta).Msg("post count adjustment skipped for missing category")
		return nil
	}
	return err
}

// UpdateSortOrder sets sortOrder.
func (r *categoryRepository) UpdateSortOrder(ctx context.Context, id domain.ID, sortOrder int64) (*domain.Category, error) {
	return r.UpdateOneByID(ctx, id, SetFields{"sortOrder": sortOrder})
}

// Activate marks the category active.
func (r *categoryRepository) Activate(ctx context.Context, id domain.ID) (*domain.Category, error) {
	return r.UpdateOneByID(ctx, id, SetFields{"isActive": true})
}

// Deactivate marks the category inactive.
func (r *categoryRepository) Deactivate(ctx context.Context, id domain.ID) (*domain.Category, error) {
	return r.UpdateOneByID(ctx, id, SetFields{"isActive": false})
}

var _ CategoryRepository = (*categoryRepository)(nil)
